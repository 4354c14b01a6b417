// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/logger"
	"github.com/jeranaias/h0x/internal/ui/chat"
	"github.com/jeranaias/h0x/internal/ui/styles"
)

func newTUICmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
}

func runTUI(parent context.Context, opts *globalOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	// The screen belongs to the UI, so logs only go to a file
	log, closeLog, err := logger.NewFileLogger(cfg.Log.File, cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	dialer := invoke.NewDialer(cfg.DialerConfig(), log)
	fwd := chat.NewForwarder(cfg.UI.MaxFPS)
	defer fwd.Close()

	ctrl := conversation.New(dialer,
		conversation.WithLogger(log),
		conversation.WithListener(fwd.Listen),
	)

	p := tea.NewProgram(
		chat.New(ctx, ctrl, fwd, cfg.UI, styles.NewTheme()),
		tea.WithAltScreen(),
	)
	fwd.Attach(p.Send)

	go watchConfig(ctx, opts, dialer, p, log)

	log.Info("tui started",
		zap.String("endpoint", cfg.Endpoint.URL),
		zap.String("transport", cfg.Endpoint.Transport))

	_, err = p.Run()
	ctrl.Cancel()
	if err != nil {
		return fmt.Errorf("ui failed: %w", err)
	}
	return nil
}

// watchConfig retargets the dialer when the config file changes. The session
// in flight keeps its channel; the next submission uses the new endpoint.
func watchConfig(ctx context.Context, opts *globalOptions, dialer *invoke.Dialer, p *tea.Program, log *zap.Logger) {
	path, err := config.ResolvePath(opts.configPath)
	if err != nil {
		log.Warn("config watch disabled", zap.Error(err))
		return
	}

	onChange := func(cfg *config.Config) {
		if err := opts.apply(cfg); err != nil {
			log.Warn("reloaded config rejected", zap.Error(err))
			return
		}
		dc := cfg.DialerConfig()
		dialer.SetEndpoint(dc.Endpoint, dc.Transport)
		log.Info("config reloaded",
			zap.String("path", path),
			zap.String("endpoint", dc.Endpoint),
			zap.String("transport", string(dc.Transport)))
		p.Send(chat.ConfigReloadedMsg{UI: cfg.UI})
	}
	onError := func(err error) {
		log.Warn("config reload failed", zap.Error(err))
	}

	if err := config.Watch(ctx, path, onChange, onError); err != nil {
		log.Warn("config watch stopped", zap.String("path", path), zap.Error(err))
	}
}
