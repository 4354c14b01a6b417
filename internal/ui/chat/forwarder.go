// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/jeranaias/h0x/internal/conversation"
)

const defaultMaxFPS = 30

// Forwarder hands controller updates to a Bubble Tea program.
//
// Listen never blocks: updates are queued and a single goroutine sends them
// in order. This matters because the controller publishes the user turn from
// inside Submit, which the view calls from its own Update.
//
// Partial updates beyond maxFPS are held back and only the latest is kept;
// the view collects it on its next StreamTickMsg. Any other kind supersedes
// a held partial, since each update carries a full snapshot.
type Forwarder struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	queue   []conversation.Update
	pending *conversation.Update
	sending bool
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	fps     int
}

// NewForwarder creates a forwarder allowing maxFPS partial redraws per second.
func NewForwarder(maxFPS int) *Forwarder {
	if maxFPS <= 0 {
		maxFPS = defaultMaxFPS
	}
	return &Forwarder{
		limiter: rate.NewLimiter(rate.Limit(maxFPS), 1),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		fps:     maxFPS,
	}
}

// Attach starts delivering queued updates to send, normally
// (*tea.Program).Send. Call it once.
func (f *Forwarder) Attach(send func(tea.Msg)) {
	go f.run(send)
}

// Close stops delivery. Queued updates are dropped.
func (f *Forwarder) Close() {
	f.once.Do(func() { close(f.done) })
}

// Listen is a conversation.Listener.
func (f *Forwarder) Listen(u conversation.Update) {
	f.mu.Lock()
	if u.Kind == conversation.UpdatePartial && !f.limiter.Allow() {
		f.pending = &u
		f.mu.Unlock()
		return
	}
	f.pending = nil
	f.queue = append(f.queue, u)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Flush returns the held partial update, if any. It holds back while older
// updates are still queued so the view never sees snapshots out of order.
func (f *Forwarder) Flush() (conversation.Update, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil || len(f.queue) > 0 || f.sending {
		return conversation.Update{}, false
	}
	u := *f.pending
	f.pending = nil
	return u, true
}

// Interval is the tick period matching the frame rate.
func (f *Forwarder) Interval() time.Duration {
	return time.Second / time.Duration(f.fps)
}

func (f *Forwarder) run(send func(tea.Msg)) {
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}

		for {
			f.mu.Lock()
			if len(f.queue) == 0 {
				f.sending = false
				f.mu.Unlock()
				break
			}
			u := f.queue[0]
			f.queue = f.queue[1:]
			f.sending = true
			f.mu.Unlock()

			send(UpdateMsg{Update: u})
		}
	}
}

// tickCmd schedules the next StreamTickMsg.
func (f *Forwarder) tickCmd() tea.Cmd {
	return tea.Tick(f.Interval(), func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
