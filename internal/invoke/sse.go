// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoke

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// =============================================================================
// SSE READER
// =============================================================================

// MaxLineSize is the longest SSE line the reader accepts (1MB).
const MaxLineSize = 1 << 20

// ErrLineTooLong is returned when a single SSE line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("sse line exceeds maximum size")

// SSEEvent is one dispatched Server-Sent Event.
type SSEEvent struct {
	Type string // empty when the event carried no event: field
	Data string
	ID   string
}

// IsMessage reports whether the event would reach an EventSource
// "message" listener.
func (e SSEEvent) IsMessage() bool {
	return e.Type == "" || e.Type == "message"
}

// SSEReader parses Server-Sent Events from a stream.
//
// Field values are kept verbatim apart from the single optional space after
// the colon. Data lines are joined with "\n". An event still pending when the
// stream ends is dropped, so a truncated frame never reaches the caller.
type SSEReader struct {
	reader  *bufio.Reader
	started bool
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next event from the stream.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (SSEEvent, error) {
	var (
		ev      SSEEvent
		data    strings.Builder
		hasData bool
	)

	for {
		line, err := s.readLine()
		if err != nil {
			return SSEEvent{}, err
		}

		// Empty line dispatches the pending event
		if line == "" {
			if !hasData {
				ev = SSEEvent{}
				continue
			}
			ev.Data = strings.TrimSuffix(data.String(), "\n")
			return ev, nil
		}

		// Comment
		if line[0] == ':' {
			continue
		}

		field, value := line, ""
		if i := strings.IndexByte(line, ':'); i >= 0 {
			field, value = line[:i], line[i+1:]
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			ev.Type = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				ev.ID = value
			}
		}
		// retry and unknown fields are ignored
	}
}

// readLine returns the next line without its LF or CRLF terminator.
// A final line with no terminator is treated as end of stream. A UTF-8 BOM
// at the start of the stream is skipped.
func (s *SSEReader) readLine() (string, error) {
	var b strings.Builder
	for {
		chunk, err := s.reader.ReadSlice('\n')
		b.Write(chunk)
		if b.Len() > MaxLineSize {
			return "", ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return "", err
		}
		line := strings.TrimSuffix(b.String(), "\n")
		if !s.started {
			s.started = true
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		return strings.TrimSuffix(line, "\r"), nil
	}
}

// =============================================================================
// SSE SOURCE
// =============================================================================

// SSESource reads frames from an open text/event-stream response.
type SSESource struct {
	body   io.ReadCloser
	reader *SSEReader
}

// NewSSESource wraps a response body. The source owns body and closes it
// in Close.
func NewSSESource(body io.ReadCloser) *SSESource {
	return &SSESource{
		body:   body,
		reader: NewSSEReader(body),
	}
}

// Next returns the data of the next message event. Events with another
// type are skipped.
func (s *SSESource) Next() (string, error) {
	for {
		ev, err := s.reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrUnexpectedEOF
			}
			return "", &TransportError{
				Type:    ErrTypeRead,
				Message: "failed to read event stream",
				Cause:   err,
			}
		}
		if !ev.IsMessage() {
			continue
		}
		return ev.Data, nil
	}
}

// Close releases the underlying response body.
// It may be called while Next is blocked, which aborts the read.
func (s *SSESource) Close() error {
	return s.body.Close()
}
