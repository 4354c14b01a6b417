// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoke

import (
	"errors"
	"net"

	"github.com/gorilla/websocket"
)

// WebSocketSource reads frames carried as WebSocket text messages.
// Binary messages are ignored.
type WebSocketSource struct {
	conn *websocket.Conn
}

// NewWebSocketSource wraps an established connection. The source owns conn.
func NewWebSocketSource(conn *websocket.Conn) *WebSocketSource {
	return &WebSocketSource{conn: conn}
}

// Next returns the payload of the next text message.
func (s *WebSocketSource) Next() (string, error) {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
					return "", ErrUnexpectedEOF
				}
				return "", &TransportError{
					Type:    ErrTypeClosed,
					Message: "websocket closed",
					Cause:   err,
				}
			}
			if errors.Is(err, net.ErrClosed) {
				return "", &TransportError{
					Type:    ErrTypeClosed,
					Message: "websocket closed locally",
					Cause:   err,
				}
			}
			return "", &TransportError{
				Type:    ErrTypeRead,
				Message: "failed to read websocket message",
				Cause:   err,
			}
		}
		if mt != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

// Close closes the connection. It may be called while Next is blocked.
func (s *WebSocketSource) Close() error {
	return s.conn.Close()
}
