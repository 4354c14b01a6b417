// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/invoke"
)

const askLongDesc string = `Ask one question and print the reply.

The reply goes to stdout without a label, so it can be piped. While it
streams, a single typing line is shown on stderr when stderr is a terminal.
Ctrl+C stops the reply. Exits 1 if the reply fails.

Examples:
  h0x ask "how do I reverse a list in Go?"
  h0x ask --endpoint http://127.0.0.1:8787/invoke hello > reply.txt`

type askCommander struct {
	opts *globalOptions
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	cmder := &askCommander{opts: opts}

	return &cobra.Command{
		Use:   "ask <query...>",
		Short: "Ask a single question",
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}
}

func (a *askCommander) run(ctx context.Context, cmd *cobra.Command, query string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := a.opts.loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := lineLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	typing := newTypingLine(cmd.ErrOrStderr(), cfg.UI)
	result := &outcome{}
	ctrl := conversation.New(invoke.NewDialer(cfg.DialerConfig(), log),
		conversation.WithLogger(log),
		conversation.WithListener(typing.listen),
		conversation.WithListener(result.listen),
	)

	if err := ctrl.Submit(ctx, query); err != nil {
		return err
	}
	// Cancellation ends the session, so this always returns
	if err := ctrl.Wait(context.Background()); err != nil {
		return err
	}

	u, ok := result.get()
	if !ok {
		return errors.New("reply ended without a result")
	}
	return report(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.UI, u, false)
}
