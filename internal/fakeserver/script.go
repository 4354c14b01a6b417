// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeserver

import (
	"fmt"
	"strings"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/stream"
)

// Reply is what the server sends for one request.
type Reply struct {
	Frames []string
	// Drop ends the response without a terminal frame
	Drop bool
}

// Script decides the reply for a request.
type Script func(history []invoke.WireTurn, query string) Reply

// DefaultChunkSize is how many runes go into each echo frame.
const DefaultChunkSize = 8

// EchoScript is the default Script.
func EchoScript(history []invoke.WireTurn, query string) Reply {
	switch {
	case strings.HasPrefix(query, "fn "):
		return Reply{Frames: []string{stream.ControlMarker + " " + strings.TrimSpace(query[3:])}}
	case query == "fail":
		return Reply{Frames: []string{"partial answer"}, Drop: true}
	case query == "empty":
		return Reply{Frames: []string{"<response></response>", stream.TerminalMarker}}
	}

	text := fmt.Sprintf("<response>You said: %s (history: %d turns)</response>", query, len(history))
	frames := Chunk(text, DefaultChunkSize)
	return Reply{Frames: append(frames, stream.TerminalMarker)}
}

// Chunk splits s into pieces of at most n runes.
func Chunk(s string, n int) []string {
	if n <= 0 {
		return []string{s}
	}
	runes := []rune(s)
	out := make([]string, 0, len(runes)/n+1)
	for len(runes) > 0 {
		end := n
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[:end]))
		runes = runes[end:]
	}
	return out
}

// writeSSE formats one frame as an SSE message event. Multi-line frames use
// one data line per line.
func writeSSE(frame string) string {
	var b strings.Builder
	for _, line := range strings.Split(frame, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
