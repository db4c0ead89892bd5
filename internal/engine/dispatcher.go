package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/five82/roost/internal/controller"
	"github.com/five82/roost/internal/metrics"
	"github.com/five82/roost/internal/state"
)

// PendingCommand is the command currently in flight.
type PendingCommand struct {
	Target  state.Target
	Desired bool
	Prior   bool
}

type origin int

const (
	originManual origin = iota
	originCascade
)

// Dispatcher issues single-flight commands to the controller with an
// optimistic view update, reconcile-on-success and revert-on-failure.
type Dispatcher struct {
	client   controller.Fetcher
	store    *state.Store
	gate     *Gate
	view     View
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// sem is the single-flight lock: weight 1, acquired for the whole
	// lifetime of a PendingCommand.
	sem *semaphore.Weighted

	mu        sync.Mutex
	pending   *PendingCommand
	seq       uint64
	settledAt map[state.Target]uint64

	// settled runs after a command resolves, before the lock is released.
	settled func(t state.Target, ok bool)

	// resync fetches a full snapshot while the store is still unknown.
	resync func(ctx context.Context) error
}

func newDispatcher(client controller.Fetcher, store *state.Store, gate *Gate, view View, notifier Notifier, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		client:    client,
		store:     store,
		gate:      gate,
		view:      view,
		notifier:  notifier,
		logger:    logger.Named("dispatch"),
		metrics:   m,
		sem:       semaphore.NewWeighted(1),
		settledAt: make(map[state.Target]uint64),
	}
}

// Dispatch sets target to desired and returns the value the controller
// confirmed. Enabling automation runs the disable cascade once the command
// has released the lock.
func (d *Dispatcher) Dispatch(ctx context.Context, target state.Target, desired bool) (bool, error) {
	confirmed, err := d.dispatch(ctx, target, desired, originManual)
	if err != nil {
		return confirmed, err
	}
	if target.IsAutomation() && desired && confirmed {
		d.gate.Cascade(ctx, d.disable)
	}
	return confirmed, nil
}

func (d *Dispatcher) disable(ctx context.Context, id state.DeviceID) error {
	_, err := d.dispatch(ctx, state.DeviceTarget(id), false, originCascade)
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, target state.Target, desired bool, o origin) (bool, error) {
	if o == originManual {
		if err := d.ensureKnown(ctx); err != nil {
			d.metrics.ObserveDispatch(target.String(), metrics.OutcomeRejected)
			d.notifier.Notify(describe(target, err), SeverityError)
			return d.store.Value(target), &DispatchError{Target: target, Desired: desired, Err: err}
		}
		if err := d.gate.Check(target); err != nil {
			d.metrics.ObserveDispatch(target.String(), metrics.OutcomeRejected)
			d.notifier.Notify(describe(target, err), SeverityWarning)
			return d.store.Value(target), &DispatchError{Target: target, Desired: desired, Err: err}
		}
		if !d.sem.TryAcquire(1) {
			d.metrics.ObserveDispatch(target.String(), metrics.OutcomeBusy)
			d.notifier.Notify(describe(target, ErrConcurrentDispatchRejected), SeverityInfo)
			return d.store.Value(target), &DispatchError{Target: target, Desired: desired, Err: ErrConcurrentDispatchRejected}
		}
	} else if err := d.sem.Acquire(ctx, 1); err != nil {
		return d.store.Value(target), &DispatchError{Target: target, Desired: desired, Err: err}
	}
	defer d.sem.Release(1)

	cmd := PendingCommand{Target: target, Desired: desired, Prior: d.store.Value(target)}
	ok := false
	d.begin(cmd)
	defer d.finish(cmd, &ok)

	d.view.ShowPending(target, true)
	d.view.ShowValue(target, desired)

	confirmed, err := d.client.Toggle(ctx, target, desired)
	if err != nil {
		return d.fail(cmd, o, err)
	}
	ok = true

	res := d.store.ApplyTarget(target, confirmed, time.Now())
	d.gate.Observe(res)
	d.view.ShowValue(target, confirmed)

	if confirmed != desired {
		d.metrics.ObserveDispatch(target.String(), metrics.OutcomeReconciled)
		d.logger.Info("controller reported a different value",
			zap.Stringer("target", target),
			zap.Bool("desired", desired),
			zap.Bool("confirmed", confirmed),
		)
		if o == originManual {
			d.notifier.Notify(fmt.Sprintf("%s stayed %s", target.Label(), onOff(confirmed)), SeverityWarning)
		}
		return confirmed, nil
	}

	d.metrics.ObserveDispatch(target.String(), metrics.OutcomeConfirmed)
	d.logger.Debug("command confirmed",
		zap.Stringer("target", target),
		zap.Bool("value", confirmed),
	)
	if o == originManual {
		d.notifier.Notify(successMessage(target, confirmed), SeveritySuccess)
	}
	return confirmed, nil
}

// ensureKnown polls once while no snapshot has been applied, so the gate
// never checks a command against the unknown sentinel.
func (d *Dispatcher) ensureKnown(ctx context.Context) error {
	if d.store.Known() {
		return nil
	}
	d.mu.Lock()
	resync := d.resync
	d.mu.Unlock()
	if resync == nil {
		return ErrStateUnknown
	}
	d.logger.Debug("state unknown; polling before dispatch")
	if err := resync(ctx); err != nil && !errors.Is(err, errPollDiscarded) {
		return err
	}
	if !d.store.Known() {
		return ErrStateUnknown
	}
	return nil
}

// fail handles a transport failure. Manual commands revert to the prior
// value; cascade commands keep the optimistic off value.
func (d *Dispatcher) fail(cmd PendingCommand, o origin, err error) (bool, error) {
	derr := &DispatchError{Target: cmd.Target, Desired: cmd.Desired, Err: err}
	if o == originCascade {
		d.metrics.ObserveDispatch(cmd.Target.String(), metrics.OutcomeCascade)
		return cmd.Prior, derr
	}
	d.metrics.ObserveDispatch(cmd.Target.String(), metrics.OutcomeReverted)
	d.view.ShowValue(cmd.Target, cmd.Prior)
	d.logger.Warn("command failed; reverted",
		zap.Stringer("target", cmd.Target),
		zap.Bool("desired", cmd.Desired),
		zap.Error(err),
	)
	d.notifier.Notify(describe(cmd.Target, err), SeverityError)
	return cmd.Prior, derr
}

func (d *Dispatcher) begin(cmd PendingCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = &cmd
}

func (d *Dispatcher) finish(cmd PendingCommand, ok *bool) {
	d.mu.Lock()
	d.pending = nil
	d.seq++
	d.settledAt[cmd.Target] = d.seq
	settled := d.settled
	d.mu.Unlock()

	if settled != nil {
		settled(cmd.Target, *ok)
	}
	d.view.ShowPending(cmd.Target, false)
}

// InFlight returns the pending command, if any.
func (d *Dispatcher) InFlight() (PendingCommand, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return PendingCommand{}, false
	}
	return *d.pending, true
}

// Epoch returns a counter that advances every time a command resolves.
func (d *Dispatcher) Epoch() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq
}

// SettledSince lists targets whose command resolved after epoch.
func (d *Dispatcher) SettledSince(epoch uint64) []state.Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []state.Target
	for t, at := range d.settledAt {
		if at > epoch {
			out = append(out, t)
		}
	}
	return out
}

func (d *Dispatcher) onSettled(fn func(t state.Target, ok bool)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settled = fn
}

func (d *Dispatcher) onUnknown(fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resync = fn
}

func successMessage(t state.Target, v bool) string {
	if t.IsAutomation() {
		if v {
			return "Automation enabled"
		}
		return "Automation disabled"
	}
	return fmt.Sprintf("%s switched %s", t.Label(), onOff(v))
}
