package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/five82/roost/internal/state"
)

// Fetcher is the subset of the controller API used by the sync engine.
// It is implemented by *Client and can be replaced in tests.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (state.Snapshot, error)
	Toggle(ctx context.Context, target state.Target, desired bool) (bool, error)
}

// Ensure Client implements Fetcher at compile time.
var _ Fetcher = (*Client)(nil)

const (
	defaultBaseURL    = "127.0.0.1:8080"
	snapshotEndpoint  = "/api/get-initial-state"
	togglePathPrefix  = "/api/toggle-"
	automationSlug    = "auto"
	maxResponseBytes  = 1 << 20
	defaultUserAgent  = "roost"
	desiredStateParam = "state"
)

// Policy bounds a single logical request: per-attempt timeout, the number
// of retries after the first attempt, and the exponential delay between
// attempts.
type Policy struct {
	Timeout   time.Duration
	Retries   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy is used when the caller does not configure one.
var DefaultPolicy = Policy{
	Timeout:   8 * time.Second,
	Retries:   2,
	BaseDelay: 250 * time.Millisecond,
	MaxDelay:  4 * time.Second,
}

func (p Policy) normalized() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy.Timeout
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.BaseDelay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = p.MaxDelay
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.Retries)), ctx)
}

// Client talks to the controller's HTTP API. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	policy    Policy
	userAgent string
	logger    *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its Timeout should be
// zero; the per-attempt budget comes from the Policy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient builds a Client for the controller at baseURL (host:port or a
// full URL).
func NewClient(baseURL string, policy Policy, logger *zap.Logger, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{},
		policy:    policy.normalized(),
		userAgent: defaultUserAgent,
		logger:    logger.Named("controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the normalized controller address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Policy returns the client's default request policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// FetchSnapshot reads the controller's full state.
func (c *Client) FetchSnapshot(ctx context.Context) (state.Snapshot, error) {
	if c == nil {
		return state.Snapshot{}, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: snapshotEndpoint}
	payload, err := c.Request(ctx, rel, c.policy, "data")
	if err != nil {
		return state.Snapshot{}, err
	}
	return decodeSnapshot(snapshotEndpoint, payload, time.Now())
}

// Toggle asks the controller to set target to desired and returns the
// value the controller reports afterwards. That value is authoritative and
// may differ from desired.
func (c *Client) Toggle(ctx context.Context, target state.Target, desired bool) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("client is nil")
	}
	path := togglePathPrefix + targetSlug(target)
	values := url.Values{}
	values.Set(desiredStateParam, boolParam(desired))
	rel := &url.URL{Path: path, RawQuery: values.Encode()}

	payload, err := c.Request(ctx, rel, c.policy, "state", "new_state", "data")
	if err != nil {
		return false, err
	}
	return decodeToggle(path, targetKey(target), payload)
}

// Request performs a GET against rel under policy and returns the unwrapped
// envelope payload. Retryable failures (timeouts, network errors, 5xx) are
// retried with exponential backoff; the returned error is always an *Error.
func (c *Client) Request(ctx context.Context, rel *url.URL, policy Policy, fields ...string) (json.RawMessage, error) {
	policy = policy.normalized()
	endpoint := rel.Path
	attempt := 0

	var payload json.RawMessage
	op := func() error {
		attempt++
		body, err := c.attempt(ctx, rel, policy.Timeout)
		if err != nil {
			cerr := classify(endpoint, err)
			if !cerr.Retryable() || ctx.Err() != nil {
				return backoff.Permanent(cerr)
			}
			return cerr
		}
		p, err := unwrapEnvelope(endpoint, body, fields...)
		if err != nil {
			return backoff.Permanent(err)
		}
		payload = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("controller request failed, retrying",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, policy.backOff(ctx), notify); err != nil {
		cerr := classify(endpoint, err)
		c.logger.Debug("controller request gave up",
			zap.String("endpoint", endpoint),
			zap.Int("attempts", attempt),
			zap.Stringer("kind", cerr.Kind),
			zap.Error(cerr),
		)
		return nil, cerr
	}
	return payload, nil
}

func (c *Client) attempt(ctx context.Context, rel *url.URL, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &Error{Kind: KindHTTP, Endpoint: rel.Path, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("read response: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func targetSlug(t state.Target) string {
	if id, ok := t.Device(); ok {
		return id.Slug()
	}
	return automationSlug
}

func targetKey(t state.Target) string {
	if id, ok := t.Device(); ok {
		return id.Key()
	}
	return automationKey
}

func boolParam(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultBaseURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse controller_url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse controller_url %q: missing host", raw)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
