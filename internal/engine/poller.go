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

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxBackoff   = 60 * time.Second
	defaultOfflineAfter = 2
)

// errPollDiscarded marks a poll whose result arrived after Stop.
var errPollDiscarded = errors.New("poll result discarded after stop")

// calculateBackoff returns the delay before the next poll after failures
// consecutive failures: base doubled per failure, capped at ceiling.
func calculateBackoff(failures int, base, ceiling time.Duration) time.Duration {
	if ceiling < base {
		ceiling = base
	}
	delay := base
	for i := 0; i < failures && delay < ceiling; i++ {
		delay *= 2
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

// Poller re-fetches the controller state on a self-rearming timer. The next
// cycle is scheduled only after the current poll settles, so polls never
// overlap.
type Poller struct {
	client     controller.Fetcher
	store      *state.Store
	gate       *Gate
	dispatcher *Dispatcher
	view       View
	notifier   Notifier
	logger     *zap.Logger
	metrics    *metrics.Metrics

	maxBackoff   time.Duration
	offlineAfter int

	// pollMu serializes fetch+apply cycles, including manual PollOnce calls.
	pollMu sync.Mutex

	mu         sync.Mutex
	ctx        context.Context
	interval   time.Duration
	generation uint64
	running    bool
	timer      *time.Timer
	failures   int
	offline    bool
	lastSync   time.Time

	// applyMu orders snapshot application against command settlement.
	applyMu  sync.Mutex
	deferred map[state.Target]bool
}

func newPoller(client controller.Fetcher, store *state.Store, gate *Gate, d *Dispatcher, view View, notifier Notifier, logger *zap.Logger, m *metrics.Metrics, interval, maxBackoff time.Duration, offlineAfter int) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}
	if offlineAfter <= 0 {
		offlineAfter = defaultOfflineAfter
	}
	p := &Poller{
		client:       client,
		store:        store,
		gate:         gate,
		dispatcher:   d,
		view:         view,
		notifier:     notifier,
		logger:       logger.Named("poller"),
		metrics:      m,
		maxBackoff:   maxBackoff,
		offlineAfter: offlineAfter,
		ctx:          context.Background(),
		interval:     interval,
		deferred:     make(map[state.Target]bool),
	}
	d.onSettled(p.commandSettled)
	d.onUnknown(p.PollOnce)
	return p
}

// Start arms the poll timer. A non-positive interval keeps the current one.
// The first poll runs after one interval; use Resume to poll immediately.
func (p *Poller) Start(ctx context.Context, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if interval > 0 {
		p.interval = interval
	}
	p.startLocked(ctx, p.delayLocked())
}

// Resume starts the poller and polls immediately.
func (p *Poller) Resume(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startLocked(ctx, 0)
}

// Stop cancels the timer. A fetch already in flight completes, but its
// result is discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether the timer is armed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// PollOnce fetches and applies one snapshot.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	gen := p.generation
	p.mu.Unlock()
	return p.poll(ctx, gen)
}

func (p *Poller) startLocked(ctx context.Context, delay time.Duration) {
	p.stopLocked()
	if ctx != nil {
		p.ctx = ctx
	}
	p.running = true
	p.scheduleLocked(p.generation, delay)
}

func (p *Poller) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.running = false
	p.generation++
}

func (p *Poller) scheduleLocked(gen uint64, delay time.Duration) {
	p.metrics.SetPollDelay(delay)
	p.timer = time.AfterFunc(delay, func() { p.cycle(gen) })
}

func (p *Poller) delayLocked() time.Duration {
	return calculateBackoff(p.failures, p.interval, p.maxBackoff)
}

func (p *Poller) cycle(gen uint64) {
	p.mu.Lock()
	if !p.running || p.generation != gen {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.mu.Unlock()

	_ = p.poll(ctx, gen)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running && p.generation == gen && ctx.Err() == nil {
		p.scheduleLocked(gen, p.delayLocked())
	}
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == gen
}

func (p *Poller) poll(ctx context.Context, gen uint64) error {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	epoch := p.dispatcher.Epoch()
	snap, err := p.client.FetchSnapshot(ctx)
	if !p.current(gen) {
		p.metrics.ObservePoll(metrics.PollDiscarded)
		p.logger.Debug("discarding poll result after stop", zap.Error(err))
		return errPollDiscarded
	}
	if err != nil {
		p.recordFailure(err)
		return err
	}
	p.recordSuccess(snap.ObservedAt)
	p.apply(snap, epoch)
	return nil
}

func (p *Poller) recordFailure(err error) {
	p.mu.Lock()
	p.failures++
	failures := p.failures
	goOffline := !p.offline && failures >= p.offlineAfter
	if goOffline {
		p.offline = true
	}
	lastSync := p.lastSync
	next := p.delayLocked()
	p.mu.Unlock()

	p.metrics.ObservePoll(metrics.PollFailed)
	p.logger.Debug("poll failed",
		zap.Int("consecutive_failures", failures),
		zap.Duration("next_poll", next),
		zap.Error(err),
	)
	if goOffline {
		p.metrics.SetOnline(false)
		p.view.ShowConnection(false, lastSync)
		p.notifier.Notify("Controller offline: "+describeOffline(err), SeverityWarning)
	}
}

func (p *Poller) recordSuccess(at time.Time) {
	p.mu.Lock()
	wasOffline := p.offline
	p.offline = false
	p.failures = 0
	p.lastSync = at
	p.mu.Unlock()

	p.metrics.ObservePoll(metrics.PollOK)
	p.metrics.SetOnline(true)
	p.view.ShowConnection(true, at)
	if wasOffline {
		p.logger.Info("controller reachable again")
		p.notifier.Notify("Controller reconnected", SeveritySuccess)
	}
}

// apply feeds snap to the store. The target of an in-flight command keeps
// its cached value and the polled value is held until the command settles.
// Targets whose command settled after the fetch started keep their cached
// value too, since the fetch may predate the command. Devices a running
// cascade has yet to switch off keep their optimistic off value.
func (p *Poller) apply(snap state.Snapshot, epoch uint64) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	keep := p.dispatcher.SettledSince(epoch)
	keep = append(keep, p.gate.CascadePending()...)
	if cmd, ok := p.dispatcher.InFlight(); ok {
		keep = append(keep, cmd.Target)
		p.deferred[cmd.Target] = snap.Value(cmd.Target)
	}
	render(p.view, p.gate, p.store.ApplyPreserving(snap, keep...))
}

// commandSettled applies the value held back for t. A confirmed command
// already wrote the authoritative value, so the held value is dropped.
func (p *Poller) commandSettled(t state.Target, ok bool) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	v, held := p.deferred[t]
	delete(p.deferred, t)
	if ok || !held {
		return
	}
	render(p.view, p.gate, p.store.ApplyTarget(t, v, time.Now()))
}

// Offline reports whether the controller is currently considered offline.
func (p *Poller) Offline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offline
}

// LastSync returns the time of the last successful poll.
func (p *Poller) LastSync() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSync
}

func describeOffline(err error) string {
	kind, ok := controller.KindOf(err)
	if !ok {
		return err.Error()
	}
	switch kind {
	case controller.KindTimeout:
		return "requests are timing out"
	case controller.KindHTTP:
		return "controller is returning errors"
	case controller.KindDecode:
		return "controller responses are malformed"
	default:
		return "controller unreachable"
	}
}
