package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/five82/roost/internal/controller"
	"github.com/five82/roost/internal/state"
)

// fakeController is an httptest controller that keeps its own state and
// counts requests per endpoint.
type fakeController struct {
	mu            sync.Mutex
	values        map[string]bool
	snapshotCalls int
	toggleCalls   map[string]int
	snapshotFail  bool
	toggleStatus  map[string]int  // slug -> forced HTTP status
	hang          map[string]bool // slug -> block until the client gives up
	refuse        map[string]bool // slug -> keep the current value
	converge      bool            // enabling automation switches every device off

	// gate, when set, holds toggles until closed; entered receives the slug
	// of each toggle that reached the gate. A non-empty gated limits the
	// hold to those slugs.
	gate    chan struct{}
	entered chan string
	gated   map[string]bool

	// snapshotGate, when set, holds snapshot requests until closed.
	snapshotGate chan struct{}
}

var slugKeys = map[string]string{
	"auto":   "automation",
	"belt":   "belt",
	"fan":    "fan",
	"bulb":   "lightbulb",
	"feeder": "feeder",
	"water":  "water",
}

func newFakeController(t *testing.T, automation bool, on ...state.DeviceID) (*fakeController, *controller.Client) {
	t.Helper()
	f := &fakeController{
		values:       map[string]bool{"automation": automation},
		toggleCalls:  map[string]int{},
		toggleStatus: map[string]int{},
		hang:         map[string]bool{},
		refuse:       map[string]bool{},
	}
	for _, id := range state.Devices {
		f.values[id.Key()] = false
	}
	for _, id := range on {
		f.values[id.Key()] = true
	}

	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	client, err := controller.NewClient(server.URL, controller.Policy{
		Timeout:   150 * time.Millisecond,
		Retries:   0,
		BaseDelay: time.Millisecond,
		MaxDelay:  time.Millisecond,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return f, client
}

func (f *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/get-initial-state":
		f.serveSnapshot(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/toggle-"):
		f.serveToggle(w, r, strings.TrimPrefix(r.URL.Path, "/api/toggle-"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeController) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.snapshotCalls++
	fail := f.snapshotFail
	hold := f.snapshotGate
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	encoded, _ := json.Marshal(f.values)
	f.mu.Unlock()
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": string(encoded)})
}

func (f *fakeController) serveToggle(w http.ResponseWriter, r *http.Request, slug string) {
	key, ok := slugKeys[slug]
	if !ok {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	f.toggleCalls[slug]++
	hang := f.hang[slug]
	status := f.toggleStatus[slug]
	hold, entered := f.gate, f.entered
	if len(f.gated) > 0 && !f.gated[slug] {
		hold = nil
	}
	f.mu.Unlock()

	if hang {
		<-r.Context().Done()
		return
	}
	if hold != nil {
		if entered != nil {
			entered <- slug
		}
		<-hold
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	desired := r.URL.Query().Get("state") == "1"
	f.mu.Lock()
	if !f.refuse[slug] {
		f.values[key] = desired
		if key == "automation" && desired && f.converge {
			for _, id := range state.Devices {
				f.values[id.Key()] = false
			}
		}
	}
	result := f.values[key]
	f.mu.Unlock()

	encoded, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]string{"state": string(encoded)})
}

func (f *fakeController) set(key string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = v
}

func (f *fakeController) setHang(slug string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hang[slug] = v
}

func (f *fakeController) setRefuse(slug string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refuse[slug] = v
}

func (f *fakeController) setToggleStatus(slug string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggleStatus[slug] = status
}

func (f *fakeController) setConverge(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.converge = v
}

func (f *fakeController) setSnapshotFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotFail = v
}

// holdToggles makes toggles wait on gate, announcing each on entered.
// With slugs, only those toggles are held.
func (f *fakeController) holdToggles(gate chan struct{}, entered chan string, slugs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate, f.entered = gate, entered
	f.gated = make(map[string]bool, len(slugs))
	for _, s := range slugs {
		f.gated[s] = true
	}
}

func (f *fakeController) holdSnapshots(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotGate = gate
}

func (f *fakeController) toggles(slug string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toggleCalls[slug]
}

func (f *fakeController) totalToggles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.toggleCalls {
		n += c
	}
	return n
}

func (f *fakeController) snapshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotCalls
}

// fakeView records what the dashboard would display.
type fakeView struct {
	mu            sync.Mutex
	values        map[state.Target]bool
	manualEnabled bool
	pending       map[state.Target]bool
	online        bool
	lastSync      time.Time
	mutations     int // control mutations: ShowValue and ShowManualEnabled
}

func newFakeView() *fakeView {
	return &fakeView{
		values:        map[state.Target]bool{},
		pending:       map[state.Target]bool{},
		manualEnabled: true,
	}
}

func (v *fakeView) ShowValue(t state.Target, val bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[t] = val
	v.mutations++
}

func (v *fakeView) ShowManualEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.manualEnabled = enabled
	v.mutations++
}

func (v *fakeView) ShowPending(t state.Target, pending bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending[t] = pending
}

func (v *fakeView) ShowConnection(online bool, lastSync time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.online = online
	v.lastSync = lastSync
}

func (v *fakeView) value(t state.Target) (bool, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	val, ok := v.values[t]
	return val, ok
}

func (v *fakeView) mutationCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mutations
}

func (v *fakeView) manual() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.manualEnabled
}

func (v *fakeView) isOnline() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.online
}

type notice struct {
	message  string
	severity Severity
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *fakeNotifier) Notify(message string, severity Severity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{message, severity})
}

func (n *fakeNotifier) count(severity Severity) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, x := range n.notices {
		if x.severity == severity {
			c++
		}
	}
	return c
}

func (n *fakeNotifier) contains(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, x := range n.notices {
		if strings.Contains(x.message, substr) {
			return true
		}
	}
	return false
}

type harness struct {
	ctrl     *fakeController
	view     *fakeView
	notifier *fakeNotifier
	sync     *SyncController
}

func newHarness(t *testing.T, opts Options, automation bool, on ...state.DeviceID) *harness {
	t.Helper()
	ctrl, client := newFakeController(t, automation, on...)
	view := newFakeView()
	notifier := &fakeNotifier{}

	opts.Client = client
	opts.View = view
	opts.Notifier = notifier
	if opts.PollInterval == 0 {
		opts.PollInterval = time.Hour
	}
	sc, err := New(opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(sc.Dispose)
	return &harness{ctrl: ctrl, view: view, notifier: notifier, sync: sc}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
