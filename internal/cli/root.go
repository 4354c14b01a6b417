// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/logger"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const rootLongDesc string = `h0x is a terminal client for a streaming chat endpoint.

Replies arrive frame by frame over server-sent events or WebSocket and are
shown as they are typed. Without a subcommand h0x starts the full-screen UI.

Examples:
  h0x
  h0x ask "what is a monad?"
  h0x --endpoint http://127.0.0.1:8787/invoke chat
  h0x fake-server --listen :8787`

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	endpoint   string
	transport  string
	debug      bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "h0x",
		Short:         "Streaming chat in the terminal",
		Long:          rootLongDesc,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ~/.h0x/config.toml)")
	flags.StringVarP(&opts.endpoint, "endpoint", "e", "", "Inference endpoint URL")
	flags.StringVarP(&opts.transport, "transport", "t", "", "Push channel transport: sse or websocket")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(
		newTUICmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newConfigCmd(opts),
		newFakeServerCmd(opts),
	)

	return cmd
}

// Execute runs the root command and exits 1 on error.
func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, RenderError(err.Error()))
		os.Exit(1)
	}
}

// loadConfig loads the config file and applies flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := o.apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays the flags on cfg and re-validates.
func (o *globalOptions) apply(cfg *config.Config) error {
	if o.endpoint != "" {
		cfg.Endpoint.URL = o.endpoint
	}
	if o.transport != "" {
		cfg.Endpoint.Transport = o.transport
	}
	if o.debug {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// lineLogger picks the logger for line-mode commands: stderr when debugging,
// the log file when one is set, otherwise nothing.
func lineLogger(cfg *config.Config) (*zap.Logger, func() error, error) {
	if cfg.Log.Debug && cfg.Log.File == "" {
		l := logger.NewLogger(true)
		return l, func() error { _ = l.Sync(); return nil }, nil
	}
	return logger.NewFileLogger(cfg.Log.File, cfg.Log.Debug)
}
