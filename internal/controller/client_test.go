package controller

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/five82/roost/internal/state"
)

var fastPolicy = Policy{
	Timeout:   200 * time.Millisecond,
	Retries:   2,
	BaseDelay: time.Millisecond,
	MaxDelay:  4 * time.Millisecond,
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, fastPolicy, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c
}

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" {
		t.Fatalf("scheme = %q, want http", u.Scheme)
	}
	if u.Host != defaultBaseURL {
		t.Fatalf("host = %q, want %q", u.Host, defaultBaseURL)
	}

	u, err = parseBaseURL("http://example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}

	if _, err := parseBaseURL("http://"); err == nil {
		t.Fatal("parseBaseURL(http://) returned nil error, want missing host")
	}
}

func TestClient_FetchSnapshotDoubleEncoded(t *testing.T) {
	t.Parallel()

	var gotUserAgent string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		if r.URL.Path != snapshotEndpoint {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":"{\"belt\":true,\"fan\":false,\"lightbulb\":1,\"feeder\":false,\"water\":0,\"automation\":false,\"temperature\":31.5}"}`))
	}))

	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot returned error: %v", err)
	}
	if !snap.Known {
		t.Fatal("snapshot Known = false")
	}
	if !snap.Devices.Get(state.Belt) || !snap.Devices.Get(state.Light) || snap.Devices.Get(state.Fan) {
		t.Fatalf("devices = %v, want belt and light on", snap.Devices)
	}
	if snap.Automation {
		t.Fatal("automation = true, want false")
	}
	if gotUserAgent != defaultUserAgent {
		t.Fatalf("User-Agent = %q, want %q", gotUserAgent, defaultUserAgent)
	}
}

func TestClient_FetchSnapshotMissingFieldIsDecodeError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":{"belt":true,"automation":false}}`))
	}))

	_, err := c.FetchSnapshot(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1 (decode errors are not retried)", got)
	}
}

func TestClient_ToggleSendsDesiredState(t *testing.T) {
	t.Parallel()

	var gotPath, gotState string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotState = r.URL.Query().Get(desiredStateParam)
		_, _ = w.Write([]byte(`{"success":true,"new_state":"{\"state\":true}","device":"/toggle-bulb"}`))
	}))

	got, err := c.Toggle(context.Background(), state.DeviceTarget(state.Light), true)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if !got {
		t.Fatal("Toggle result = false, want true")
	}
	if gotPath != "/api/toggle-bulb" {
		t.Fatalf("path = %q, want /api/toggle-bulb", gotPath)
	}
	if gotState != "1" {
		t.Fatalf("state param = %q, want 1", gotState)
	}
}

func TestClient_ToggleAutomationEndpoint(t *testing.T) {
	t.Parallel()

	var gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"state":false}`))
	}))

	got, err := c.Toggle(context.Background(), state.AutomationTarget, false)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if got {
		t.Fatal("Toggle result = true, want false")
	}
	if gotPath != "/api/toggle-auto" {
		t.Fatalf("path = %q, want /api/toggle-auto", gotPath)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"state":"true"}`))
	}))

	got, err := c.Toggle(context.Background(), state.DeviceTarget(state.Fan), true)
	if err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	if !got {
		t.Fatal("Toggle result = false, want true")
	}
	if n := calls.Load(); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestClient_ExhaustedRetriesReturnHTTPError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := c.FetchSnapshot(context.Background())
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if cerr.Kind != KindHTTP || cerr.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %+v, want http 503", cerr)
	}
	if n := calls.Load(); n != int32(fastPolicy.Retries+1) {
		t.Fatalf("calls = %d, want %d", n, fastPolicy.Retries+1)
	}
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	_, err := c.Toggle(context.Background(), state.DeviceTarget(state.Water), false)
	if !errors.Is(err, ErrHTTP) {
		t.Fatalf("err = %v, want ErrHTTP", err)
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestClient_AttemptTimeoutIsClassified(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))

	_, err := c.FetchSnapshot(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if n := calls.Load(); n != int32(fastPolicy.Retries+1) {
		t.Fatalf("calls = %d, want %d", n, fastPolicy.Retries+1)
	}
}

func TestClient_UnreachableIsNetworkError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	c, err := NewClient(addr, Policy{Timeout: time.Second, Retries: 0}, nil)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.FetchSnapshot(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
}

func TestClient_CanceledContextStopsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchSnapshot(ctx)
	if err == nil {
		t.Fatal("FetchSnapshot returned nil error for canceled context")
	}
	if kind, ok := KindOf(err); !ok || kind != KindNetwork {
		t.Fatalf("KindOf(err) = %v, %v; want network", kind, ok)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("calls = %d, want 0", n)
	}
}
