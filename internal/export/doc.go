// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes the current transcript to a file on request.
//
// Supported formats:
//   - Markdown (.md): readable transcript with role headings
//   - JSON (.json): the turns with wire role names
//
// Nothing is read back; an export is a snapshot for the user, not storage.
//
// Usage:
//
//	path, err := export.ExportTurns(ctrl.Turns(), "md", &export.Options{OutputDir: "."})
package export
