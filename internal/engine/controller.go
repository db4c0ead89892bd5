package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/five82/roost/internal/controller"
	"github.com/five82/roost/internal/metrics"
	"github.com/five82/roost/internal/state"
)

// Options configure a SyncController.
type Options struct {
	Client   controller.Fetcher // required
	View     View               // nil discards view updates
	Notifier Notifier           // nil only logs notifications
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	PollInterval   time.Duration
	MaxPollBackoff time.Duration
	OfflineAfter   int
	CascadeSkipOff bool
}

// SyncController owns the store, gate, dispatcher and poller for one
// operator session.
type SyncController struct {
	store      *state.Store
	gate       *Gate
	dispatcher *Dispatcher
	poller     *Poller
	logger     *zap.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	disposed bool
	visible  bool
}

// New wires a SyncController. Nothing runs until Init.
func New(opts Options) (*SyncController, error) {
	if opts.Client == nil {
		return nil, errors.New("engine: client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	view := opts.View
	if view == nil {
		view = nopView{}
	}
	notifier := Notifier(loggingNotifier{logger: logger.Named("notify"), next: opts.Notifier})

	store := &state.Store{}
	gate := newGate(store, view, logger, opts.CascadeSkipOff)
	d := newDispatcher(opts.Client, store, gate, view, notifier, logger, opts.Metrics)
	p := newPoller(opts.Client, store, gate, d, view, notifier, logger, opts.Metrics,
		opts.PollInterval, opts.MaxPollBackoff, opts.OfflineAfter)

	return &SyncController{
		store:      store,
		gate:       gate,
		dispatcher: d,
		poller:     p,
		logger:     logger,
		visible:    true,
	}, nil
}

// Init performs the initial poll and starts the poll loop. A failed
// initial poll is reported through the notifier and the loop keeps trying.
func (c *SyncController) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	runCtx := c.ctx
	visible := c.visible
	c.mu.Unlock()

	if err := c.poller.PollOnce(runCtx); err != nil {
		c.logger.Warn("initial poll failed", zap.Error(err))
	}
	if visible {
		c.poller.Start(runCtx, 0)
	}
	return nil
}

// Dispose stops polling, cancels in-flight work and resets the store to
// unknown. The controller cannot be reused.
func (c *SyncController) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.poller.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	c.store.Reset()
}

// SetVisible pauses polling while the operator cannot see the dashboard and
// resumes with an immediate poll when they can.
func (c *SyncController) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible == visible {
		return
	}
	c.visible = visible
	if !c.started || c.disposed {
		return
	}
	if visible {
		c.logger.Debug("dashboard visible; resuming polls")
		c.poller.Resume(c.ctx)
		return
	}
	c.logger.Debug("dashboard hidden; pausing polls")
	c.poller.Stop()
}

// Dispatch sets target to desired. See Dispatcher.Dispatch.
func (c *SyncController) Dispatch(ctx context.Context, target state.Target, desired bool) (bool, error) {
	if c.isDisposed() {
		return false, ErrDisposed
	}
	return c.dispatcher.Dispatch(ctx, target, desired)
}

// Toggle dispatches the opposite of target's last confirmed value. Before
// the first snapshot it polls so the opposite is taken from the controller.
func (c *SyncController) Toggle(ctx context.Context, target state.Target) (bool, error) {
	if !c.isDisposed() && !c.store.Known() {
		_ = c.poller.PollOnce(ctx)
	}
	return c.Dispatch(ctx, target, !c.store.Value(target))
}

// PollOnce runs one poll outside the timer.
func (c *SyncController) PollOnce(ctx context.Context) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	return c.poller.PollOnce(ctx)
}

// CanDispatchManual reports whether manual device commands are allowed.
func (c *SyncController) CanDispatchManual() bool {
	return c.gate.CanDispatchManual()
}

// InFlight returns the pending command, if any.
func (c *SyncController) InFlight() (PendingCommand, bool) {
	return c.dispatcher.InFlight()
}

// Store exposes the cached snapshot for read-only callers.
func (c *SyncController) Store() *state.Store {
	return c.store
}

// Polling reports whether the poll timer is armed.
func (c *SyncController) Polling() bool {
	return c.poller.Running()
}

func (c *SyncController) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
