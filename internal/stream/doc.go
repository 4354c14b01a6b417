// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the per-query Stream Session.
//
// A Session owns one push channel. It classifies each inbound frame as a
// control call, a terminal frame or content, accumulates partial text, and
// reports what happened as typed Events on a channel, strictly in frame
// order. The channel is closed once the session reaches StateClosed.
//
// # State Machine
//
//	Idle ──Start──▶ Open ──content──▶ Streaming ──content──▶ Streaming
//	                 │                    │
//	                 ├──terminal──────────┴──▶ Finalizing ──▶ Closed
//	                 ├──control call──────────────────────▶ Closed
//	                 └──error / cancel────▶ Errored ──────▶ Closed
//
// # Usage
//
//	s := stream.NewSession(dialer, logger)
//	events, err := s.Start(ctx, history, query)
//	if err != nil {
//	    return err
//	}
//	for ev := range events {
//	    switch ev := ev.(type) {
//	    case stream.PartialUpdate:
//	        render(ev.Text)
//	    case stream.Finalized:
//	        commit(ev.Content)
//	    }
//	}
package stream
