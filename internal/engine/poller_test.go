package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/five82/roost/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	base := 2 * time.Second
	ceiling := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // would be 32s
		{"many failures capped", 100, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, base, ceiling)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v, %v) = %v, want %v", tt.failures, base, ceiling, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_CeilingBelowBase(t *testing.T) {
	if got := calculateBackoff(3, 10*time.Second, time.Second); got != 10*time.Second {
		t.Fatalf("calculateBackoff with ceiling < base = %v, want base", got)
	}
}

func TestPoller_BackoffMonotonicThenResets(t *testing.T) {
	h := newHarness(t, Options{PollInterval: time.Second, MaxPollBackoff: 10 * time.Second}, false)
	p := h.sync.poller
	ctx := context.Background()

	h.ctrl.setSnapshotFail(true)
	prev := time.Duration(0)
	for i := 0; i < 8; i++ {
		if err := p.PollOnce(ctx); err == nil {
			t.Fatal("PollOnce succeeded against failing controller")
		}
		p.mu.Lock()
		delay := p.delayLocked()
		p.mu.Unlock()
		if delay < prev {
			t.Fatalf("delay after %d failures = %v, decreased from %v", i+1, delay, prev)
		}
		if delay > 10*time.Second {
			t.Fatalf("delay after %d failures = %v, exceeds cap", i+1, delay)
		}
		prev = delay
	}
	if prev != 10*time.Second {
		t.Fatalf("delay after sustained failure = %v, want cap", prev)
	}

	h.ctrl.setSnapshotFail(false)
	if err := p.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}
	p.mu.Lock()
	delay := p.delayLocked()
	p.mu.Unlock()
	if delay != time.Second {
		t.Fatalf("delay after success = %v, want base interval", delay)
	}
}

func TestPoller_OfflineAndReconnectNotifications(t *testing.T) {
	h := newHarness(t, Options{OfflineAfter: 2}, false)
	ctx := context.Background()

	if err := h.sync.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}
	if !h.view.isOnline() {
		t.Fatal("view offline after successful poll")
	}
	valuesBefore, _ := h.view.value(fan)

	h.ctrl.setSnapshotFail(true)
	_ = h.sync.PollOnce(ctx)
	if h.notifier.contains("offline") {
		t.Fatal("offline raised after a single failure")
	}
	_ = h.sync.PollOnce(ctx)
	_ = h.sync.PollOnce(ctx)
	if got := h.notifier.count(SeverityWarning); got != 1 {
		t.Fatalf("warning notices = %d, want exactly 1 offline notice", got)
	}
	if h.view.isOnline() {
		t.Fatal("view still online after sustained failure")
	}
	if v, _ := h.view.value(fan); v != valuesBefore {
		t.Fatal("poll failure changed a displayed device value")
	}

	h.ctrl.setSnapshotFail(false)
	if err := h.sync.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}
	if !h.notifier.contains("reconnected") {
		t.Fatalf("notices = %+v, want reconnect", h.notifier.notices)
	}
	if !h.view.isOnline() {
		t.Fatal("view offline after reconnect")
	}
}

func TestPoller_IdempotentPollsDoNotTouchView(t *testing.T) {
	h := newHarness(t, Options{}, false, state.Water)
	ctx := context.Background()

	if err := h.sync.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}
	after := h.view.mutationCount()
	if after == 0 {
		t.Fatal("first poll did not render anything")
	}
	for i := 0; i < 3; i++ {
		if err := h.sync.PollOnce(ctx); err != nil {
			t.Fatalf("PollOnce returned error: %v", err)
		}
	}
	if got := h.view.mutationCount(); got != after {
		t.Fatalf("view mutations = %d after identical polls, want %d", got, after)
	}
}

func TestPoller_StopDiscardsInFlightResult(t *testing.T) {
	h := newHarness(t, Options{}, false, state.Fan)
	hold := make(chan struct{})
	h.ctrl.holdSnapshots(hold)
	p := h.sync.poller

	done := make(chan error, 1)
	go func() { done <- p.PollOnce(context.Background()) }()
	waitFor(t, "snapshot request", func() bool { return h.ctrl.snapshots() == 1 })

	p.Stop()
	close(hold)

	if err := <-done; !errors.Is(err, errPollDiscarded) {
		t.Fatalf("PollOnce err = %v, want errPollDiscarded", err)
	}
	if h.sync.Store().Known() {
		t.Fatal("discarded poll was applied to the store")
	}
	if h.view.mutationCount() != 0 {
		t.Fatal("discarded poll touched the view")
	}
}

func TestPoller_DefersInFlightTarget(t *testing.T) {
	h := newHarness(t, Options{}, false)
	ctx := context.Background()
	if err := h.sync.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}

	gate := make(chan struct{})
	entered := make(chan string, 1)
	h.ctrl.holdToggles(gate, entered)
	h.ctrl.setToggleStatus("fan", http.StatusBadGateway)
	released := false
	t.Cleanup(func() {
		if !released {
			close(gate)
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.sync.Dispatch(ctx, fan, true)
		done <- err
	}()
	<-entered

	// The fan is switched on at the panel while our command is in flight.
	h.ctrl.set("fan", true)
	h.ctrl.set("feeder", true)
	if err := h.sync.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}
	if h.sync.Store().CurrentDevice(state.Fan) {
		t.Fatal("poll overwrote the in-flight fan value")
	}
	if !h.sync.Store().CurrentDevice(state.Feeder) {
		t.Fatal("poll did not apply the feeder change")
	}
	if v, _ := h.view.value(fan); !v {
		t.Fatal("poll flickered the optimistic fan value")
	}

	released = true
	close(gate)
	if err := <-done; err == nil {
		t.Fatal("Dispatch succeeded, want forced 502 failure")
	}

	// The command failed; the deferred polled value is authoritative.
	if !h.sync.Store().CurrentDevice(state.Fan) {
		t.Fatal("deferred fan value was not applied after the command failed")
	}
	if v, _ := h.view.value(fan); !v {
		t.Fatal("view fan = false, want deferred authoritative true")
	}
}

func TestPoller_SettledCommandBeatsStalePoll(t *testing.T) {
	h := newHarness(t, Options{}, false)
	ctx := context.Background()
	if err := h.sync.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce returned error: %v", err)
	}

	// A fetch starts here and observes the fan off.
	epoch := h.sync.dispatcher.Epoch()
	stale := state.NewSnapshot(state.DeviceState{}, false, time.Now())

	if _, err := h.sync.Dispatch(ctx, fan, true); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	// A snapshot fetched before the command settled must not undo it.
	h.sync.poller.apply(stale, epoch)
	if !h.sync.Store().CurrentDevice(state.Fan) {
		t.Fatal("stale poll reverted a confirmed command")
	}
	if v, _ := h.view.value(fan); !v {
		t.Fatal("stale poll flickered the view")
	}
}

func TestSyncController_VisibilityPausesAndResumes(t *testing.T) {
	h := newHarness(t, Options{PollInterval: time.Hour}, false)
	ctx := context.Background()
	if err := h.sync.Init(ctx); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if !h.sync.Polling() {
		t.Fatal("poller not running after Init")
	}
	initial := h.ctrl.snapshots()

	h.sync.SetVisible(false)
	if h.sync.Polling() {
		t.Fatal("poller still running while hidden")
	}

	h.sync.SetVisible(true)
	if !h.sync.Polling() {
		t.Fatal("poller not running after becoming visible")
	}
	waitFor(t, "immediate poll on resume", func() bool { return h.ctrl.snapshots() > initial })
}

func TestSyncController_RearmsAfterEachPoll(t *testing.T) {
	h := newHarness(t, Options{PollInterval: 10 * time.Millisecond}, false)
	if err := h.sync.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	waitFor(t, "several scheduled polls", func() bool { return h.ctrl.snapshots() >= 4 })
}

func TestSyncController_DisposeResetsStore(t *testing.T) {
	h := newHarness(t, Options{}, false, state.Belt)
	ctx := context.Background()
	if err := h.sync.Init(ctx); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if !h.sync.Store().Known() {
		t.Fatal("store unknown after Init")
	}

	h.sync.Dispose()
	if h.sync.Store().Known() {
		t.Fatal("store still known after Dispose")
	}
	if h.sync.Polling() {
		t.Fatal("poller running after Dispose")
	}
	if _, err := h.sync.Dispatch(ctx, fan, true); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Dispatch after Dispose err = %v, want ErrDisposed", err)
	}
	if err := h.sync.Init(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Init after Dispose err = %v, want ErrDisposed", err)
	}
}

func TestSyncController_InitSurvivesUnreachableController(t *testing.T) {
	h := newHarness(t, Options{}, false)
	h.ctrl.setSnapshotFail(true)

	if err := h.sync.Init(context.Background()); err != nil {
		t.Fatalf("Init returned error for failing controller: %v", err)
	}
	if h.sync.Store().Known() {
		t.Fatal("store known without a successful poll")
	}
	if !h.sync.Polling() {
		t.Fatal("poller not running after failed initial poll")
	}
}
