// Package ui provides the roost terminal dashboard.
//
// The dashboard is a Bubble Tea program showing one tile for the
// automation flag and one per device. It holds no authority over device
// state: every value it renders arrives from the sync engine through a
// Bridge, which implements engine.View and engine.Notifier by queueing
// messages for the running program.
//
// # Key Bindings
//
//   - j/k: Move selection
//   - space/enter: Toggle the selected tile
//   - 1-5: Toggle a device directly
//   - a: Toggle automation
//   - r: Poll the controller now
//   - T: Cycle theme
//   - h/?: Help
//   - q or Ctrl+C: Quit
//
// Device tiles render locked while automation is on; the engine rejects
// manual commands in that state and the dashboard shows its notice.
//
// Focus reporting pauses polling while the terminal is unfocused and
// resumes it, with an immediate poll, when focus returns.
package ui
