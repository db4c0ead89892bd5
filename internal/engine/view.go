package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/five82/roost/internal/state"
)

// Severity classifies an operator notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// View is the displayed control state. Implementations must be safe to call
// from any goroutine; the engine never calls them while holding its locks
// that a View method could re-enter.
type View interface {
	// ShowValue displays v as the value of t.
	ShowValue(t state.Target, v bool)
	// ShowManualEnabled enables or disables the manual device controls.
	ShowManualEnabled(enabled bool)
	// ShowPending marks t as having a command in flight.
	ShowPending(t state.Target, pending bool)
	// ShowConnection updates the online indicator and last sync time.
	ShowConnection(online bool, lastSync time.Time)
}

// Notifier surfaces a message to the operator.
type Notifier interface {
	Notify(message string, severity Severity)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string, severity Severity)

// Notify calls f.
func (f NotifierFunc) Notify(message string, severity Severity) {
	f(message, severity)
}

type nopView struct{}

func (nopView) ShowValue(state.Target, bool) {}
func (nopView) ShowManualEnabled(bool) {}
func (nopView) ShowPending(state.Target, bool) {}
func (nopView) ShowConnection(bool, time.Time) {}

// loggingNotifier records every notification before forwarding it.
type loggingNotifier struct {
	logger *zap.Logger
	next   Notifier
}

func (n loggingNotifier) Notify(message string, severity Severity) {
	fields := []zap.Field{zap.Stringer("severity", severity)}
	switch severity {
	case SeverityError:
		n.logger.Error(message, fields...)
	case SeverityWarning:
		n.logger.Warn(message, fields...)
	default:
		n.logger.Info(message, fields...)
	}
	if n.next != nil {
		n.next.Notify(message, severity)
	}
}

// render pushes the changed fields of res to the view.
func render(view View, gate *Gate, res state.Result) {
	if !res.Changed {
		return
	}
	gate.Observe(res)
	for _, c := range res.Diff {
		view.ShowValue(c.Target, c.New)
	}
}
