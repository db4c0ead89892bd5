package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/roost/internal/state"
)

// Gate enforces that manual device commands and automation mode are
// mutually exclusive.
type Gate struct {
	store   *state.Store
	view    View
	logger  *zap.Logger
	skipOff bool

	mu      sync.Mutex
	pending map[state.DeviceID]bool // devices the running cascade has yet to settle
}

func newGate(store *state.Store, view View, logger *zap.Logger, skipOff bool) *Gate {
	return &Gate{
		store:   store,
		view:    view,
		logger:  logger.Named("gate"),
		skipOff: skipOff,
	}
}

// CanDispatchManual reports whether device commands are currently allowed.
func (g *Gate) CanDispatchManual() bool {
	return !g.store.CurrentAutomation()
}

// Check admits t or rejects it with ErrPolicyViolation. A rejected device
// control is redrawn with its last confirmed value.
func (g *Gate) Check(t state.Target) error {
	if t.IsAutomation() || g.CanDispatchManual() {
		return nil
	}
	g.view.ShowValue(t, g.store.Value(t))
	return ErrPolicyViolation
}

// Observe updates manual availability when res changed the automation flag.
func (g *Gate) Observe(res state.Result) {
	if c, ok := res.Diff.Automation(); ok {
		g.view.ShowManualEnabled(!c.New)
	}
}

// Cascade switches every device off after automation was enabled. The
// view and the cache are set to off first; then disable runs once per
// device, in order. A failed disable is logged and left for the next poll
// to reconcile. The cascade stops early if a snapshot shows automation
// switched off again or ctx is done.
func (g *Gate) Cascade(ctx context.Context, disable func(context.Context, state.DeviceID) error) {
	before := g.store.Snapshot()
	now := time.Now()

	g.mu.Lock()
	g.pending = make(map[state.DeviceID]bool, len(state.Devices))
	for _, id := range state.Devices {
		if g.skipOff && before.Known && !before.Devices.Get(id) {
			continue
		}
		g.pending[id] = true
	}
	g.mu.Unlock()
	defer g.clearPending()

	g.view.ShowManualEnabled(false)
	for _, id := range state.Devices {
		g.store.ApplyTarget(state.DeviceTarget(id), false, now)
		g.view.ShowValue(state.DeviceTarget(id), false)
	}

	var sent, failed int
	for _, id := range state.Devices {
		if ctx.Err() != nil {
			g.logger.Debug("cascade canceled", zap.Error(ctx.Err()))
			return
		}
		// Automation was confirmed on; only a known snapshot can overrule it.
		if g.store.Known() && !g.store.CurrentAutomation() {
			g.logger.Info("automation switched off during cascade; stopping")
			return
		}
		if !g.isPending(id) {
			g.logger.Debug("cascade skipping device already off", zap.Stringer("device", id))
			continue
		}
		sent++
		err := disable(ctx, id)
		g.settle(id)
		if err != nil {
			failed++
			g.logger.Warn("cascade disable failed",
				zap.Stringer("device", id),
				zap.Error(err),
			)
		}
	}
	g.logger.Info("automation cascade finished",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
}

// CascadePending lists the device targets a running cascade has not yet
// settled. Polls keep their optimistic off value until then.
func (g *Gate) CascadePending() []state.Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []state.Target
	for _, id := range state.Devices {
		if g.pending[id] {
			out = append(out, state.DeviceTarget(id))
		}
	}
	return out
}

func (g *Gate) isPending(id state.DeviceID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending[id]
}

func (g *Gate) settle(id state.DeviceID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.pending, id)
}

func (g *Gate) clearPending() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
}
