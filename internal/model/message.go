// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies who produced a turn.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

// String returns the internal name of the role.
// This is not the wire name; see invoke.EncodeHistory for that mapping.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "User"
	case RoleAssistant:
		return "Assistant"
	default:
		return "Unknown"
	}
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "AI"
	default:
		return r.String()
	}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// Turn is one finalized message in a conversation.
// Turns are values; once appended to a Conversation they are never modified.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserTurn creates a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAssistantTurn creates an assistant turn.
func NewAssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// IsEmpty returns true if the turn has no content.
func (t Turn) IsEmpty() bool {
	return t.Content == ""
}
