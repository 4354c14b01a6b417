// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/model"
	"github.com/jeranaias/h0x/internal/stream"
	"github.com/jeranaias/h0x/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBlankQuery is returned for empty or whitespace-only input.
	// Nothing is appended.
	ErrBlankQuery = errors.New("query is blank")

	// ErrSessionActive is returned when a reply is still streaming. The
	// user turn was appended but no request was sent.
	ErrSessionActive = errors.New("a response is already in progress")
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithListener registers a listener. Listeners run in registration order
// and must not call back into the controller.
func WithListener(fn Listener) Option {
	return func(c *Controller) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// WithConversation uses an existing store instead of a fresh one.
func WithConversation(conv *model.Conversation) Option {
	return func(c *Controller) {
		if conv != nil {
			c.conv = conv
		}
	}
}

// Controller runs the conversation: at most one stream session at a time,
// a store of finalized turns, and a typing buffer for the reply in flight.
type Controller struct {
	opener    stream.Opener
	conv      *model.Conversation
	logger    *zap.Logger
	listeners []Listener

	// notifyMu keeps listener calls ordered across Submit and the pump.
	// Lock order is mu then notifyMu.
	notifyMu sync.Mutex

	mu       sync.Mutex
	active   *stream.Session
	awaiting bool
	typing   string
	idle     chan struct{}
}

// New creates a controller that opens sessions with opener.
func New(opener stream.Opener, opts ...Option) *Controller {
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		opener: opener,
		conv:   model.NewConversation(),
		logger: zap.NewNop(),
		idle:   idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit handles one line of user input.
//
// Blank input returns ErrBlankQuery. Otherwise the query is appended as a
// user turn exactly as typed. If a session is already active Submit returns
// ErrSessionActive; else it starts a session with the history preceding the
// new turn. ctx bounds the session's lifetime, not just the call.
func (c *Controller) Submit(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrBlankQuery
	}

	c.mu.Lock()
	turns := c.conv.Turns()
	c.conv.AppendUser(query)

	if c.active != nil {
		activeID := c.active.ID()
		c.publishLocked(Update{Kind: UpdateUserTurn, SessionID: activeID, Text: query, State: c.snapshotLocked()})

		c.logger.Info("query appended while busy",
			zap.String("active_session", activeID),
			zap.String("query", util.Preview(query, 60)))
		return ErrSessionActive
	}

	session := stream.NewSession(c.opener, c.logger)
	events, err := session.Start(ctx, invoke.EncodeHistory(turns), query)
	if err != nil {
		// A fresh session always starts
		c.mu.Unlock()
		return err
	}
	c.active = session
	c.awaiting = true
	c.typing = ""
	c.idle = make(chan struct{})
	c.publishLocked(Update{Kind: UpdateUserTurn, SessionID: session.ID(), Text: query, State: c.snapshotLocked()})

	c.logger.Debug("query submitted",
		zap.String("session", session.ID()),
		zap.Int("history", len(turns)))

	go c.pump(session, events)
	return nil
}

// pump applies session events until the session's channel closes.
// Wait returns only after listeners have seen the final update.
func (c *Controller) pump(session *stream.Session, events <-chan stream.Event) {
	for ev := range events {
		c.mu.Lock()
		u, idle := c.applyLocked(session, ev)
		c.publishLocked(u)
		closeIdle(idle)
	}

	// The channel only closes after a terminal event, which already
	// released the session. This covers a session that ended without one.
	c.mu.Lock()
	var idle chan struct{}
	if c.active == session {
		idle = c.releaseLocked()
	}
	c.mu.Unlock()
	closeIdle(idle)
}

// applyLocked reconciles one event into controller state. For a terminal
// event it also returns the idle channel to close once the update is
// published.
func (c *Controller) applyLocked(session *stream.Session, ev stream.Event) (Update, chan struct{}) {
	u := Update{SessionID: session.ID()}
	var idle chan struct{}

	switch ev := ev.(type) {
	case stream.PartialUpdate:
		c.typing = ev.Text
		u.Kind = UpdatePartial
		u.Text = ev.Text

	case stream.ControlCall:
		idle = c.releaseLocked()
		u.Kind = UpdateControlCall
		u.Text = ev.Name

	case stream.Finalized:
		if ev.Content != "" {
			c.conv.AppendAssistant(ev.Content)
			u.Text = ev.Content
		}
		idle = c.releaseLocked()
		u.Kind = UpdateFinalized

	case stream.Errored:
		idle = c.releaseLocked()
		u.Kind = UpdateErrored
		u.Err = ev.Err
		c.logger.Warn("response failed",
			zap.String("session", session.ID()),
			zap.Error(ev.Err))
	}

	u.State = c.snapshotLocked()
	return u, idle
}

// releaseLocked clears the active session and returns its idle channel.
func (c *Controller) releaseLocked() chan struct{} {
	c.active = nil
	c.awaiting = false
	c.typing = ""
	return c.idle
}

func closeIdle(idle chan struct{}) {
	if idle == nil {
		return
	}
	select {
	case <-idle:
	default:
		close(idle)
	}
}

// publishLocked hands u to the listeners. It is called with mu held and
// releases it; notifyMu is taken first so updates reach listeners in the
// order their snapshots were taken.
func (c *Controller) publishLocked(u Update) {
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, fn := range c.listeners {
		fn(u)
	}
}

// =============================================================================
// VIEWS AND CONTROL
// =============================================================================

func (c *Controller) snapshotLocked() State {
	return State{
		Turns:    c.conv.Turns(),
		Awaiting: c.awaiting,
		Typing:   c.typing,
	}
}

// Snapshot returns turns, awaiting and typing as one consistent copy.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Turns returns a copy of the committed turns.
func (c *Controller) Turns() []model.Turn {
	return c.conv.Turns()
}

// Awaiting reports whether a session is active.
func (c *Controller) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// Typing returns the partial reply, or "" when nothing is streaming.
func (c *Controller) Typing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// Cancel aborts the active session, if any. The session ends with an
// UpdateErrored whose Err wraps context.Canceled.
func (c *Controller) Cancel() {
	c.mu.Lock()
	s := c.active
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
}

// Wait blocks until no session is active or ctx is done.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
