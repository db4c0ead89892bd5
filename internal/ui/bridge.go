package ui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/roost/internal/engine"
	"github.com/five82/roost/internal/state"
)

var (
	_ engine.View     = (*Bridge)(nil)
	_ engine.Notifier = (*Bridge)(nil)
)

// Bridge adapts the sync engine's View and Notifier callbacks to Bubble Tea
// messages. Callbacks only append to a queue, so engine goroutines never
// wait on the render loop; Forward drains the queue in order.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	wake   chan struct{}
	closed bool
}

// NewBridge returns an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{wake: make(chan struct{}, 1)}
}

func (b *Bridge) ShowValue(t state.Target, v bool) {
	b.push(valueMsg{target: t, on: v})
}

func (b *Bridge) ShowManualEnabled(enabled bool) {
	b.push(manualMsg(enabled))
}

func (b *Bridge) ShowPending(t state.Target, pending bool) {
	b.push(pendingMsg{target: t, pending: pending})
}

func (b *Bridge) ShowConnection(online bool, lastSync time.Time) {
	b.push(connectionMsg{online: online, lastSync: lastSync})
}

func (b *Bridge) Notify(message string, severity engine.Severity) {
	b.push(noticeMsg{text: message, severity: severity})
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Forward delivers queued messages to send, in order, until ctx is done.
// Messages pushed before Forward starts are kept and delivered first.
func (b *Bridge) Forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			b.closed = true
			b.queue = nil
			b.mu.Unlock()
			return
		case <-b.wake:
		}

		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()

		for _, msg := range batch {
			send(msg)
		}
	}
}
