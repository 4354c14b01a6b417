// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/invoke"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler serves the same script over WebSocket, one text message
// per frame. A dropped reply ends with an abnormal close.
func WebSocketHandler(config Config, logger *zap.Logger) http.Handler {
	if config.Script == nil {
		config.Script = EchoScript
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		history, query, err := invoke.DecodeRequest(r.URL.RawQuery)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		reply := config.Script(history, query)
		for _, frame := range reply.Frames {
			if config.FrameDelay > 0 {
				time.Sleep(config.FrameDelay)
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				logger.Debug("client went away", zap.Error(err))
				return
			}
		}

		code := websocket.CloseNormalClosure
		if reply.Drop {
			code = websocket.CloseInternalServerErr
		}
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	})
}
