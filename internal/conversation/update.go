// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import "github.com/jeranaias/h0x/internal/model"

// UpdateKind identifies what changed.
type UpdateKind int

const (
	// UpdateUserTurn: a user turn was appended.
	UpdateUserTurn UpdateKind = iota
	// UpdatePartial: the typing buffer changed.
	UpdatePartial
	// UpdateControlCall: the server requested a function; nothing committed.
	UpdateControlCall
	// UpdateFinalized: the reply finished. Text is empty when nothing was
	// committed.
	UpdateFinalized
	// UpdateErrored: the session failed or was canceled.
	UpdateErrored
)

// String returns the kind name.
func (k UpdateKind) String() string {
	switch k {
	case UpdateUserTurn:
		return "user_turn"
	case UpdatePartial:
		return "partial"
	case UpdateControlCall:
		return "control_call"
	case UpdateFinalized:
		return "finalized"
	case UpdateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Update is delivered to listeners after each state change.
type Update struct {
	Kind UpdateKind
	// SessionID names the session the update belongs to. For a user turn
	// rejected with ErrSessionActive it is the session still running.
	SessionID string
	// Text is the user query, the typing buffer, the control-call name or
	// the committed content, depending on Kind.
	Text string
	Err  error
	// State is the controller snapshot taken right after the change.
	State State
}

// Listener receives updates in order on a single goroutine.
// It must not block for long.
type Listener func(Update)

// State is a consistent copy of the controller's view.
type State struct {
	Turns    []model.Turn
	Awaiting bool
	Typing   string
}
