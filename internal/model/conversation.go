// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the append-only transcript of a chat session.
//
// There is deliberately no API to remove or edit turns. Readers always get
// copies, so a renderer can hold on to a snapshot while new turns arrive.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{turns: make([]Turn, 0)}
}

// =============================================================================
// APPEND
// =============================================================================

// Append adds a turn to the end of the conversation.
func (c *Conversation) Append(turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.turns = append(c.turns, turn)
}

// AppendUser creates and appends a user turn.
func (c *Conversation) AppendUser(content string) Turn {
	turn := NewUserTurn(content)
	c.Append(turn)
	return turn
}

// AppendAssistant creates and appends an assistant turn.
func (c *Conversation) AppendAssistant(content string) Turn {
	turn := NewAssistantTurn(content)
	c.Append(turn)
	return turn
}

// =============================================================================
// READ ACCESS
// =============================================================================

// Turns returns a copy of all turns in insertion order.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// IsEmpty returns true if there are no turns.
func (c *Conversation) IsEmpty() bool {
	return c.Len() == 0
}

// Last returns the most recent turn, or false if the conversation is empty.
func (c *Conversation) Last() (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}

// CountByRole returns how many turns were produced by the given role.
func (c *Conversation) CountByRole(role Role) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, t := range c.turns {
		if t.Role == role {
			n++
		}
	}
	return n
}
