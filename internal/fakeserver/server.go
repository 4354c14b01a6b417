// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package fakeserver

import (
	"bufio"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/util"
)

// Config is the fake server configuration.
type Config struct {
	// Address to listen on (e.g., ":8787")
	ListenAddr string

	// Delay between frames; zero sends them back to back
	FrameDelay time.Duration

	// Script picks the reply; nil means EchoScript
	Script Script
}

// Server serves the scripted /invoke endpoint over SSE.
type Server struct {
	config Config
	logger *zap.Logger
	app    *fiber.App
}

// New creates a new Server.
func New(config Config, logger *zap.Logger) *Server {
	if config.Script == nil {
		config.Script = EchoScript
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/invoke", s.handleInvoke)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	return s
}

// Run listens on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting fake server", zap.String("listen", s.config.ListenAddr))
	return s.app.Listen(s.config.ListenAddr)
}

// RunWithListener serves on an existing listener.
func (s *Server) RunWithListener(ln net.Listener) error {
	s.logger.Info("starting fake server", zap.String("listen", ln.Addr().String()))
	return s.app.Listener(ln)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleInvoke(c *fiber.Ctx) error {
	history, query, err := invoke.DecodeRequest(string(c.Request().URI().QueryString()))
	if err != nil {
		s.logger.Warn("bad request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}

	reply := s.config.Script(history, query)
	s.logger.Debug("invoke",
		zap.Int("history", len(history)),
		zap.String("query", util.Preview(query, 60)),
		zap.Int("frames", len(reply.Frames)),
		zap.Bool("drop", reply.Drop),
	)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")

	delay := s.config.FrameDelay
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		// A greeting comment, ignored by readers
		w.WriteString(": h0x fake server\n\n")
		w.Flush()

		for _, frame := range reply.Frames {
			if delay > 0 {
				time.Sleep(delay)
			}
			w.WriteString(writeSSE(frame))
			if err := w.Flush(); err != nil {
				s.logger.Debug("client went away", zap.Error(err))
				return
			}
		}
	}))

	return nil
}
