// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package invoke talks to the remote inference endpoint.
//
// It owns everything that touches the wire: the History Codec that turns
// conversation turns into WireTurns, the request encoding that packs
// (history, query) into the endpoint URL, and the push-channel transports
// that deliver the reply one text frame at a time.
//
// # Key Types
//
//   - WireTurn: the {role, content} shape the endpoint expects as context
//   - Source: one open push channel; Next returns the next frame payload
//   - SSESource: Server-Sent Events over HTTP GET (the default transport)
//   - WebSocketSource: the same frames carried as WebSocket text messages
//   - Dialer: builds the request target and opens a Source
//   - TransportError: dial, status, protocol and read failures
//
// # Usage
//
//	dialer := invoke.NewDialer(invoke.DefaultConfig(), logger)
//	src, err := dialer.Open(ctx, invoke.EncodeHistory(conv.Turns()), "hello")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	for {
//	    payload, err := src.Next()
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(payload)
//	}
package invoke
