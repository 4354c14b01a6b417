// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the h0x terminal UI.
//
// Colors are Lip Gloss AdaptiveColors so the UI follows the terminal's light
// or dark background. NewTheme inspects the terminal with termenv and builds
// every style the chat view uses.
//
// # Usage
//
//	theme := styles.NewTheme()
//	theme.SetSize(width, height)
//	line := theme.UserLabel.Render("あなた: ") + theme.UserText.Render(text)
package styles
