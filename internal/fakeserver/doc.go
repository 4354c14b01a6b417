// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fakeserver is a scripted inference server for local use and
// end-to-end tests.
//
// It serves GET /invoke over server-sent events (fiber) and, optionally,
// over WebSocket (gorilla). Both decode the chat_history and query
// parameters and play a Script:
//
//	"fn <name>"   one control frame "fn: <name>"
//	"fail"        one content frame, then the connection drops
//	"empty"       "<response></response>" then the terminal frame
//	anything else an echo wrapped in <response>, split into chunks, then [DONE]
package fakeserver
