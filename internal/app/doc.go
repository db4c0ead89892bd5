// Package app is roost's composition root.
//
// # Overview
//
// Run wires configuration, logging, metrics, the controller client, the
// sync engine and the dashboard, then blocks until the operator quits:
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       │
//	       ├─────> config.Load()          Read config.toml, apply flags
//	       ├─────> logging.New()          File logger (or Nop)
//	       ├─────> metrics.Serve()        Optional /metrics endpoint
//	       ├─────> controller.NewClient() HTTP client with retry policy
//	       ├─────> engine.New()           Store, gate, dispatcher, poller
//	       ├─────> SyncController.Init()  Initial poll, then the poll loop
//	       └─────> ui.Run()               Dashboard (blocks)
//
// The engine reports to the dashboard through ui.Bridge; the dashboard
// drives the engine through Toggle, PollOnce and SetVisible.
//
// # One-shot Commands
//
// Status prints a single snapshot. Toggle sends one command through a
// short-lived SyncController, so the automation policy and the disable
// cascade behave as they do in the dashboard.
//
// # Error Handling
//
// Configuration errors are the only fatal path. An unreachable controller
// at startup is not an error: the dashboard starts offline and the poll
// loop keeps trying.
package app
