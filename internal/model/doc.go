// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and turns.
//
// A Conversation is the transcript of one chat session: an ordered,
// append-only sequence of finalized turns. It is re-sent as context with
// every new query, so order is significant and turns are never edited.
//
// # Key Types
//
//   - Conversation: append-only store of turns, safe for one writer and many readers
//   - Turn: a single finalized message with a role and its content
//   - Role: who produced a turn (User or Assistant)
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.AppendUser("こんにちは")
//	conv.AppendAssistant("Hello!")
//	for _, turn := range conv.Turns() {
//	    fmt.Printf("%s: %s\n", turn.Role, turn.Content)
//	}
package model
