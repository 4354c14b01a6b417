// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/fakeserver"
	"github.com/jeranaias/h0x/internal/logger"
)

const fakeServerLongDesc string = `Run a scripted inference server for local testing.

GET /invoke answers over server-sent events. With --ws-listen the same script
is also served over WebSocket. The reply depends on the query:

  fn <name>   a control frame requesting <name>
  fail        one content frame, then the connection drops
  empty       an empty reply
  (other)     an echo of the query, streamed in small chunks

Examples:
  h0x fake-server
  h0x fake-server --listen 127.0.0.1:8787 --ws-listen 127.0.0.1:8788 --delay 50ms`

type fakeServerCommander struct {
	opts     *globalOptions
	listen   string
	wsListen string
	delay    time.Duration
}

func newFakeServerCmd(opts *globalOptions) *cobra.Command {
	cmder := &fakeServerCommander{opts: opts}

	cmd := &cobra.Command{
		Use:   "fake-server",
		Short: "Run the scripted local server",
		Long:  fakeServerLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", ":8787", "Address for the SSE endpoint")
	cmd.Flags().StringVar(&cmder.wsListen, "ws-listen", "", "Address for the WebSocket endpoint (disabled when empty)")
	cmd.Flags().DurationVar(&cmder.delay, "delay", 30*time.Millisecond, "Delay between frames")

	return cmd
}

func (f *fakeServerCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.NewLogger(f.opts.debug)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := fakeserver.Config{ListenAddr: f.listen, FrameDelay: f.delay}
	srv := fakeserver.New(cfg, log)

	errs := make(chan error, 2)
	go func() { errs <- srv.Run() }()

	var wsSrv *http.Server
	if f.wsListen != "" {
		wsSrv = &http.Server{
			Addr:              f.wsListen,
			Handler:           fakeserver.WebSocketHandler(cfg, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		log.Info("starting websocket endpoint", zap.String("listen", f.wsListen))
		go func() {
			if err := wsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
	}

	log.Info("shutting down")
	if wsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = wsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
