// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoke

import "strconv"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes transport errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeStatus
	ErrTypeProtocol
	ErrTypeRead
	ErrTypeClosed
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeStatus:
		return "status"
	case ErrTypeProtocol:
		return "protocol"
	case ErrTypeRead:
		return "read"
	case ErrTypeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransportError reports a push channel that failed to open or was
// interrupted before a terminal or control frame arrived.
type TransportError struct {
	Type    ErrorType
	Message string
	Status  int // HTTP status, when the server answered
	Cause   error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg += " (status " + strconv.Itoa(e.Status) + ")"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ErrUnexpectedEOF is returned by Source.Next when the server closes the
// push channel before sending a terminal or control frame.
var ErrUnexpectedEOF = &TransportError{
	Type:    ErrTypeClosed,
	Message: "push channel closed before terminal frame",
}
