// Package metrics exposes roost's sync-engine counters in Prometheus format.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "roost"

// Poll results.
const (
	PollOK        = "ok"
	PollFailed    = "failed"
	PollDiscarded = "discarded"
)

// Dispatch outcomes.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeReconciled = "reconciled"
	OutcomeReverted   = "reverted"
	OutcomeRejected   = "rejected"
	OutcomeBusy       = "busy"
	OutcomeCascade    = "cascade_failed"
)

// Metrics holds the collectors registered for one sync engine.
type Metrics struct {
	polls      *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	pollDelay  prometheus.Gauge
	online     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Controller state polls by result.",
		}, []string{"result"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Commands dispatched to the controller by target and outcome.",
		}, []string{"target", "outcome"}),
		pollDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "poll_delay_seconds",
			Help:      "Delay before the next scheduled poll, including failure backoff.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "controller_online",
			Help:      "1 while the controller answers polls, 0 once it is considered offline.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.polls, m.dispatches, m.pollDelay, m.online)
	}
	return m
}

// ObservePoll counts one poll with the given result.
func (m *Metrics) ObservePoll(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

// ObserveDispatch counts one command outcome.
func (m *Metrics) ObserveDispatch(target, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(target, outcome).Inc()
}

// SetPollDelay records the delay before the next poll.
func (m *Metrics) SetPollDelay(d time.Duration) {
	if m == nil {
		return
	}
	m.pollDelay.Set(d.Seconds())
}

// SetOnline records the connection indicator.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
