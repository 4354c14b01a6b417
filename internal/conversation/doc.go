// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation provides the Conversation Controller.
//
// The Controller accepts user input, keeps the conversation store and the
// transient typing buffer in step with the active stream session, and tells
// renderers about every change through Update listeners. Renderers read state
// through Snapshot and never mutate it.
package conversation
