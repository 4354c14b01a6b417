// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the h0x packages.
//
// # Key Functions
//
//   - TruncateWidth, StringWidth: display-width aware string handling
//   - Preview: single-line, width-bounded excerpt used in log fields
//     and the typing indicator
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
