// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoke

import "github.com/jeranaias/h0x/internal/model"

// =============================================================================
// WIRE TYPES
// =============================================================================

// Wire role names. These differ from model.Role's internal names.
const (
	WireRoleUser      = "user"
	WireRoleAssistant = "assistant"
)

// WireTurn is a conversation turn in the shape the endpoint expects.
type WireTurn struct {
	Role    string `json:"role"`    // "user" or "assistant"
	Content string `json:"content"` // copied verbatim from the turn
}

// =============================================================================
// HISTORY CODEC
// =============================================================================

// EncodeHistory converts finalized turns into wire turns.
// Order is preserved and content is copied byte for byte. The result is never
// nil so that an empty history serializes as [] rather than null.
func EncodeHistory(turns []model.Turn) []WireTurn {
	out := make([]WireTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, WireTurn{
			Role:    wireRole(t.Role),
			Content: t.Content,
		})
	}
	return out
}

func wireRole(r model.Role) string {
	if r == model.RoleAssistant {
		return WireRoleAssistant
	}
	return WireRoleUser
}
