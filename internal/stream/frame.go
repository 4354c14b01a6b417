// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "strings"

// Frame markers. A payload containing either one anywhere is not content.
const (
	ControlMarker  = "fn:"
	TerminalMarker = "[DONE]"
)

// Response wrapper tags removed from finalized text.
const (
	wrapperOpen  = "<response>"
	wrapperClose = "</response>"
)

// FrameKind is the classification of one inbound payload.
type FrameKind int

const (
	FrameContent FrameKind = iota
	FrameControlCall
	FrameTerminal
)

// String returns the kind name.
func (k FrameKind) String() string {
	switch k {
	case FrameControlCall:
		return "control_call"
	case FrameTerminal:
		return "terminal"
	default:
		return "content"
	}
}

// Frame is a classified payload.
type Frame struct {
	Kind FrameKind
	// Raw is the payload as received.
	Raw string
	// Arg is the trimmed text after the first marker: the function name for
	// a control call, the final chunk for a terminal frame. Empty for content.
	Arg string
}

// Classify sorts a payload into exactly one kind. Control calls win over
// terminal frames, and anything else is content. Markers are matched as
// plain substrings with no escaping.
func Classify(payload string) Frame {
	if _, after, ok := strings.Cut(payload, ControlMarker); ok {
		return Frame{Kind: FrameControlCall, Raw: payload, Arg: strings.TrimSpace(after)}
	}
	if _, after, ok := strings.Cut(payload, TerminalMarker); ok {
		return Frame{Kind: FrameTerminal, Raw: payload, Arg: strings.TrimSpace(after)}
	}
	return Frame{Kind: FrameContent, Raw: payload}
}

// StripWrapper removes the first "<response>" and then the first
// "</response>". Other occurrences and surrounding whitespace are kept.
func StripWrapper(s string) string {
	s = strings.Replace(s, wrapperOpen, "", 1)
	return strings.Replace(s, wrapperClose, "", 1)
}
