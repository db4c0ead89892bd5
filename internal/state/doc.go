// Package state holds the last-known authoritative controller state for roost.
//
// # Overview
//
// The Store is the single owner of the cached Snapshot. The poller and the
// command dispatcher both write to it; the UI and the automation gate read
// from it. Nothing else mutates the cached value.
//
// # Core Types
//
// DeviceID / DeviceState:
//   - Fixed set of actuators: belt, fan, light, feeder, water
//   - DeviceState is an array indexed by DeviceID, so copies are independent
//     and == is a structural comparison
//   - Each DeviceID knows its controller field name (light is "lightbulb")
//     and its toggle endpoint slug (light is "bulb")
//
// Target:
//   - Either one device or the automation flag
//   - The subject of commands, diffs and view updates
//
// Snapshot:
//   - Devices, Automation, ObservedAt, Known
//   - Immutable value; the zero Snapshot is the "unknown" sentinel used at
//     startup and after Reset
//
// # Apply Semantics
//
//	res := store.Apply(candidate)
//	res.Changed  // false when candidate matches the cache (ObservedAt ignored)
//	res.Diff     // changed targets, automation first
//
// A structurally identical candidate is a no-op: the cache is not replaced
// and the diff is empty, so callers that render only the diff perform zero
// UI mutations. The first apply after unknown reports every field.
//
// ApplyPreserving keeps the cached value of the given targets. The poller
// uses it for targets whose command is still in flight, so a poll that
// raced the command cannot flicker the optimistic value.
//
// ApplyTarget records a single command confirmation on top of the cache.
// It is ignored while the store is unknown.
//
// # Concurrency Model
//
// A sync.RWMutex guards the cached Snapshot. Every write is one assignment
// under the write lock; reads copy the value under the read lock. Because
// Snapshot contains no pointers or slices, the copy is the defensive copy.
package state
