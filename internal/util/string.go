// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended to truncated text.
const Ellipsis = "…"

// StringWidth returns the number of terminal columns s occupies.
// East Asian wide characters count as 2.
func StringWidth(s string) int {
	return runewidth.StringWidth(s)
}

// TruncateWidth cuts s to at most maxWidth columns, ending in Ellipsis when
// anything was removed. Multi-byte characters are never split.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	return runewidth.Truncate(s, maxWidth, Ellipsis)
}

// TruncateWidthLeft keeps the last maxWidth columns of s, starting with
// Ellipsis when anything was removed. Used to show the tail of a growing reply.
func TruncateWidthLeft(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	budget := maxWidth - runewidth.StringWidth(Ellipsis)
	if budget <= 0 {
		return runewidth.Truncate(Ellipsis, maxWidth, "")
	}

	runes := []rune(s)
	width := 0
	i := len(runes)
	for i > 0 {
		w := runewidth.RuneWidth(runes[i-1])
		if width+w > budget {
			break
		}
		width += w
		i--
	}
	return Ellipsis + string(runes[i:])
}

// Preview flattens whitespace runs (including newlines) to single spaces
// and truncates the result to maxWidth columns.
func Preview(s string, maxWidth int) string {
	return TruncateWidth(strings.Join(strings.Fields(s), " "), maxWidth)
}
