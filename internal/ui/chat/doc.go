// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view.
//
// The view never mutates conversation state. It submits input to the
// controller and renders the State snapshots carried by controller updates.
// Updates reach the program through a Forwarder, which the controller calls
// on its pump goroutine. The Forwarder coalesces partial updates to the
// configured frame rate.
//
// # Layout
//
// Before the first submission the view shows a centered logo, tagline and
// input. Afterwards it shows the transcript, a status line (spinner while
// waiting for the first token), any notice and the input.
//
// # Usage
//
//	fwd := chat.NewForwarder(cfg.UI.MaxFPS)
//	ctrl := conversation.New(dialer, conversation.WithListener(fwd.Listen))
//	p := tea.NewProgram(chat.New(ctx, ctrl, fwd, cfg.UI, styles.NewTheme()), tea.WithAltScreen())
//	fwd.Attach(p.Send)
//	_, err := p.Run()
package chat
