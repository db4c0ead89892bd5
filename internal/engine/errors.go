package engine

import (
	"errors"
	"fmt"

	"github.com/five82/roost/internal/controller"
	"github.com/five82/roost/internal/state"
)

var (
	// ErrPolicyViolation rejects a manual device command while automation
	// is active. No request reaches the controller.
	ErrPolicyViolation = errors.New("manual control is disabled while automation is active")

	// ErrConcurrentDispatchRejected rejects a command while another one is
	// in flight. The rejected command is dropped, not queued.
	ErrConcurrentDispatchRejected = errors.New("another command is still in flight")

	// ErrStateUnknown rejects a command sent before any snapshot could be
	// fetched from the controller.
	ErrStateUnknown = errors.New("controller state is not known yet")

	// ErrDisposed is returned by a SyncController after Dispose.
	ErrDisposed = errors.New("sync controller disposed")
)

// DispatchError reports a failed command.
type DispatchError struct {
	Target  state.Target
	Desired bool
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("switch %s %s: %v", e.Target, onOff(e.Desired), e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// describe renders a command failure for the operator.
func describe(t state.Target, err error) string {
	label := t.Label()
	switch {
	case errors.Is(err, ErrPolicyViolation):
		return fmt.Sprintf("%s: manual control is disabled while automation is on", label)
	case errors.Is(err, ErrConcurrentDispatchRejected):
		return fmt.Sprintf("%s: another command is still in progress", label)
	case errors.Is(err, ErrStateUnknown):
		return fmt.Sprintf("%s: waiting for the first sync with the controller", label)
	}
	var cerr *controller.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case controller.KindTimeout:
			return fmt.Sprintf("%s: controller did not respond in time", label)
		case controller.KindHTTP:
			return fmt.Sprintf("%s: controller rejected the command (HTTP %d)", label, cerr.Status)
		case controller.KindDecode:
			return fmt.Sprintf("%s: unexpected response from controller", label)
		default:
			return fmt.Sprintf("%s: controller unreachable", label)
		}
	}
	return fmt.Sprintf("%s: %v", label, err)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
