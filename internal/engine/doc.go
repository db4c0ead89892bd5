// Package engine keeps the dashboard's displayed control state consistent
// with the controller.
//
// # Overview
//
// A SyncController owns four collaborators for one operator session:
//
//   - Gate: manual commands and automation mode are mutually exclusive
//   - Dispatcher: single-flight commands with optimistic display
//   - Poller: self-rearming re-fetch of the authoritative state
//   - state.Store: the cached snapshot (see package state)
//
// The UI implements View and Notifier; the engine never renders anything
// itself.
//
// # Command Flow
//
//	Dispatch(target, desired)
//	  Gate.Check          device target while automation is on -> ErrPolicyViolation
//	  semaphore.TryAcquire  held -> ErrConcurrentDispatchRejected
//	  View.ShowValue(desired)       optimistic
//	  controller.Toggle
//	    ok:   Store.ApplyTarget(confirmed), View.ShowValue(confirmed)
//	    fail: View.ShowValue(prior), Notify(error)
//	  release
//	  automation enabled -> Gate.Cascade
//
// The value the controller reports is always the confirmed one, even when
// it differs from the request. That case is logged as reconciliation.
//
// # Polling
//
// The Poller arms a timer with time.AfterFunc and re-arms it only after the
// poll settles. The delay is PollInterval doubled per consecutive failure up
// to MaxPollBackoff; one success resets it. After OfflineAfter failures the
// view shows offline and a single warning is raised; the next success
// raises a reconnect notice.
//
// Stop bumps a generation counter. A fetch that was already in flight
// completes but its result is discarded.
//
// While a command is in flight the poller leaves its target alone and
// holds the polled value. If the command fails the held value is applied;
// if it succeeds the confirmed value stands.
//
// # Automation Cascade
//
// When the operator enables automation, every device is shown and cached
// as off, manual controls are disabled, and a disable command is sent per
// device through the dispatcher, one after another. Failures are logged at
// warn level and left for the next poll to reconcile. Automation switched
// on outside roost (observed by a poll) only disables the manual controls.
package engine
