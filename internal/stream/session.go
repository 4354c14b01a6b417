// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/util"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateStreaming
	StateFinalizing
	StateErrored
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Opener opens one push channel for (history, query).
// *invoke.Dialer is the production implementation.
type Opener interface {
	Open(ctx context.Context, history []invoke.WireTurn, query string) (invoke.Source, error)
}

// ErrAlreadyStarted is returned by Start on a session that is not idle.
var ErrAlreadyStarted = errors.New("stream session already started")

const (
	eventBuffer  = 16
	previewWidth = 60
)

// Session handles exactly one query. It is not reusable: a new query needs
// a new Session.
type Session struct {
	id     string
	opener Opener
	logger *zap.Logger
	events chan Event

	mu     sync.Mutex
	state  State
	src    invoke.Source
	cancel context.CancelFunc

	closeOnce sync.Once

	// buffer is only touched by the run goroutine
	buffer strings.Builder
}

// NewSession creates an idle session. A nil logger discards output.
func NewSession(opener Opener, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		opener: opener,
		logger: logger.With(zap.String("session", id)),
		events: make(chan Event, eventBuffer),
		state:  StateIdle,
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start opens the push channel and begins reading frames on a new
// goroutine. Events arrive on the returned channel, which is closed after
// the last one. Canceling ctx ends the session with an Errored event.
func (s *Session) Start(ctx context.Context, history []invoke.WireTurn, query string) (<-chan Event, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateOpen
	s.mu.Unlock()

	s.buffer.Reset()

	s.logger.Debug("session started",
		zap.Int("history", len(history)),
		zap.String("query", util.Preview(query, previewWidth)))

	go s.run(ctx, history, query)
	return s.events, nil
}

// Cancel ends the session early. The reader emits Errored wrapping
// context.Canceled unless the session already finished. Safe to call
// more than once and before Start.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) run(ctx context.Context, history []invoke.WireTurn, query string) {
	defer close(s.events)
	defer s.cancel()

	src, err := s.opener.Open(ctx, history, query)
	if err != nil {
		s.fail(ctx, err)
		return
	}

	s.mu.Lock()
	s.src = src
	s.mu.Unlock()

	// Closing the source unblocks a pending Next
	stop := context.AfterFunc(ctx, s.closeSource)
	defer stop()

	for {
		payload, err := src.Next()
		if err != nil {
			s.fail(ctx, err)
			return
		}
		if ctx.Err() != nil {
			s.fail(ctx, ctx.Err())
			return
		}
		if done := s.handle(Classify(payload)); done {
			return
		}
	}
}

// handle applies one frame and reports whether the session is finished.
func (s *Session) handle(f Frame) bool {
	s.logger.Debug("frame",
		zap.Stringer("kind", f.Kind),
		zap.Int("bytes", len(f.Raw)))

	switch f.Kind {
	case FrameControlCall:
		s.logger.Info("control call", zap.String("function", f.Arg))
		s.buffer.Reset()
		s.closeSource()
		s.emit(ControlCall{Name: f.Arg})
		s.setState(StateClosed)
		return true

	case FrameTerminal:
		s.setState(StateFinalizing)
		final := StripWrapper(s.buffer.String() + f.Arg)
		s.buffer.Reset()
		s.closeSource()
		s.logger.Debug("finalized",
			zap.Int("bytes", len(final)),
			zap.String("content", util.Preview(final, previewWidth)))
		s.emit(Finalized{Content: final})
		s.setState(StateClosed)
		return true

	default:
		s.buffer.WriteString(f.Raw)
		s.setState(StateStreaming)
		s.emit(PartialUpdate{Text: s.buffer.String()})
		return false
	}
}

func (s *Session) fail(ctx context.Context, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("stream canceled: %w", ctxErr)
	}

	s.setState(StateErrored)
	dropped := s.buffer.Len()
	s.buffer.Reset()
	s.closeSource()

	s.logger.Warn("session failed",
		zap.Error(err),
		zap.Int("dropped_bytes", dropped))
	s.emit(Errored{Err: err})
	s.setState(StateClosed)
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

// closeSource closes the push channel at most once.
func (s *Session) closeSource() {
	s.mu.Lock()
	src := s.src
	s.mu.Unlock()
	if src == nil {
		return
	}

	s.closeOnce.Do(func() {
		if err := src.Close(); err != nil {
			s.logger.Debug("close push channel", zap.Error(err))
		}
	})
}
