// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the h0x command line.
//
// Commands:
//
//	h0x [tui]            full-screen chat (default)
//	h0x ask <query...>   one-shot question, reply on stdout
//	h0x chat             line-mode chat with input history
//	h0x config [--path]  print the effective configuration
//	h0x fake-server      run the scripted local server
//
// Global flags --config, --endpoint, --transport and --debug override the
// config file and environment.
package cli
