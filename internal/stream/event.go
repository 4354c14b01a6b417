// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// Event is one observation emitted by a Session. The set is closed:
// PartialUpdate, ControlCall, Finalized and Errored.
type Event interface {
	isEvent()
}

// PartialUpdate carries the whole accumulated buffer after a content frame.
type PartialUpdate struct {
	Text string
}

// ControlCall reports a function invocation requested by the server.
type ControlCall struct {
	Name string
}

// Finalized carries the completed reply with the response wrapper removed.
// Content may be empty, in which case nothing should be committed.
type Finalized struct {
	Content string
}

// Errored reports a transport failure or cancellation. Partial text has
// been discarded.
type Errored struct {
	Err error
}

func (PartialUpdate) isEvent() {}
func (ControlCall) isEvent()   {}
func (Finalized) isEvent()     {}
func (Errored) isEvent()       {}
