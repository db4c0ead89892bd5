package state

import (
	"sync"
	"time"
)

// Snapshot is one authoritative reading of the controller. It is a value
// type; the zero Snapshot (Known == false) is the "unknown" sentinel.
type Snapshot struct {
	Devices    DeviceState
	Automation bool
	ObservedAt time.Time
	Known      bool
}

// NewSnapshot builds a known snapshot.
func NewSnapshot(devices DeviceState, automation bool, observedAt time.Time) Snapshot {
	return Snapshot{
		Devices:    devices,
		Automation: automation,
		ObservedAt: observedAt,
		Known:      true,
	}
}

// Value returns the value of t in s.
func (s Snapshot) Value(t Target) bool {
	if t.IsAutomation() {
		return s.Automation
	}
	id, _ := t.Device()
	return s.Devices.Get(id)
}

// With returns a copy of s with t set to v.
func (s Snapshot) With(t Target, v bool) Snapshot {
	if t.IsAutomation() {
		s.Automation = v
		return s
	}
	id, _ := t.Device()
	s.Devices = s.Devices.With(id, v)
	return s
}

// sameState compares the controller-visible fields; ObservedAt is ignored.
func (s Snapshot) sameState(o Snapshot) bool {
	return s.Known == o.Known && s.Automation == o.Automation && s.Devices == o.Devices
}

// Change is one field that differs between two snapshots.
type Change struct {
	Target Target
	Old    bool
	New    bool
}

// Diff lists changes with the automation flag first, then devices in
// display order.
type Diff []Change

// Automation returns the automation change, if any.
func (d Diff) Automation() (Change, bool) {
	for _, c := range d {
		if c.Target.IsAutomation() {
			return c, true
		}
	}
	return Change{}, false
}

// Result is returned by every apply.
type Result struct {
	Changed  bool
	Diff     Diff
	Snapshot Snapshot
}

func diff(prev, next Snapshot) Diff {
	var out Diff
	for _, t := range Targets() {
		old, cur := prev.Value(t), next.Value(t)
		if !prev.Known || old != cur {
			out = append(out, Change{Target: t, Old: old, New: cur})
		}
	}
	return out
}

// Store holds the last applied snapshot. The zero value is ready to use and
// starts in the unknown state.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Apply replaces the cached snapshot with candidate when they differ.
// Applying a structurally identical snapshot is a no-op that reports
// Changed == false.
func (s *Store) Apply(candidate Snapshot) Result {
	return s.ApplyPreserving(candidate)
}

// ApplyPreserving applies candidate but keeps the cached value of each
// target in keep. The cached values are read under the same lock as the
// replacement, so a concurrent ApplyTarget is never overwritten.
func (s *Store) ApplyPreserving(candidate Snapshot, keep ...Target) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot
	if !candidate.Known {
		return Result{Snapshot: prev}
	}
	if prev.Known {
		for _, t := range keep {
			candidate = candidate.With(t, prev.Value(t))
		}
	}
	if prev.sameState(candidate) {
		return Result{Snapshot: prev}
	}
	s.snapshot = candidate
	return Result{Changed: true, Diff: diff(prev, candidate), Snapshot: candidate}
}

// ApplyTarget records a single confirmed value on top of the cached
// snapshot. It does nothing while the store is unknown: a lone command
// result says nothing about the other fields.
func (s *Store) ApplyTarget(t Target, v bool, at time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snapshot
	if !prev.Known || prev.Value(t) == v {
		return Result{Snapshot: prev}
	}
	next := prev.With(t, v)
	next.ObservedAt = at
	s.snapshot = next
	return Result{Changed: true, Diff: diff(prev, next), Snapshot: next}
}

// Snapshot returns the cached snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Known reports whether any snapshot has been applied since the last Reset.
func (s *Store) Known() bool {
	return s.Snapshot().Known
}

// CurrentAutomation returns the last applied automation flag.
func (s *Store) CurrentAutomation() bool {
	return s.Snapshot().Automation
}

// CurrentDevice returns the last applied value of id.
func (s *Store) CurrentDevice(id DeviceID) bool {
	return s.Snapshot().Devices.Get(id)
}

// Value returns the last applied value of t.
func (s *Store) Value(t Target) bool {
	return s.Snapshot().Value(t)
}

// Reset returns the store to the unknown sentinel.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}
