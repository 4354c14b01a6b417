// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/export"
	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/model"
)

const chatLongDesc string = `Chat line by line without the full-screen UI.

Up and down arrows walk the input history, which is kept in
~/.h0x/chat_history. Ctrl+C stops a reply in flight; at the prompt it exits.

Commands:
  /history                 print the conversation so far
  /export [md|json] [dir]  write the conversation to a file
  /help                    show this list
  /quit                    leave (also /exit, Ctrl+D)`

// historyFileName is the input history file inside the config directory.
const historyFileName = "chat_history"

type chatCommander struct {
	opts *globalOptions
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	cmder := &chatCommander{opts: opts}

	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat with input history",
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := c.opts.loadConfig()
	if err != nil {
		return err
	}
	log, closeLog, err := lineLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyPath := inputHistoryPath()
	loadInputHistory(line, historyPath)
	defer saveInputHistory(line, historyPath, log)

	typing := newTypingLine(errOut, cfg.UI)
	result := &outcome{}
	ctrl := conversation.New(invoke.NewDialer(cfg.DialerConfig(), log),
		conversation.WithLogger(log),
		conversation.WithListener(typing.listen),
		conversation.WithListener(result.listen),
	)

	// Outside the prompt the terminal is cooked, so Ctrl+C arrives as a signal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	fmt.Fprintln(errOut, RenderInfo(fmt.Sprintf("h0x %s · %s · /help for commands", Version, cfg.Endpoint.URL)))

	for {
		input, err := line.Prompt(cfg.UI.UserLabel + "> ")
		if err != nil {
			fmt.Fprintln(out)
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(trimmed, "/") {
			if quit := slashCommand(out, errOut, trimmed, ctrl.Turns(), cfg.UI); quit {
				return nil
			}
			continue
		}

		if err := c.exchange(ctx, ctrl, result, sigs, input); err != nil {
			fmt.Fprintln(errOut, RenderError(err.Error()))
			continue
		}
		u, _ := result.get()
		if err := report(out, errOut, cfg.UI, u, true); err != nil {
			fmt.Fprintln(errOut, RenderError(err.Error()))
		}
	}
}

// exchange submits one query and waits for the reply, canceling it on
// Ctrl+C.
func (c *chatCommander) exchange(ctx context.Context, ctrl *conversation.Controller, result *outcome, sigs <-chan os.Signal, query string) error {
	result.reset()
	if err := ctrl.Submit(ctx, query); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		_ = ctrl.Wait(context.Background())
		close(done)
	}()

	for {
		select {
		case <-sigs:
			ctrl.Cancel()
		case <-done:
			return nil
		}
	}
}

// slashCommand runs a REPL command and reports whether to quit.
func slashCommand(out, errOut io.Writer, input string, turns []model.Turn, ui config.UIConfig) bool {
	name := strings.ToLower(strings.Fields(input)[0])
	switch name {
	case "/quit", "/exit", "/q":
		return true
	case "/history":
		if len(turns) == 0 {
			fmt.Fprintln(errOut, RenderInfo("(no messages yet)"))
			return false
		}
		for _, t := range turns {
			fmt.Fprintln(out, renderTurn(ui, t.Role == model.RoleUser, t.Content))
		}
	case "/export":
		exportTranscript(out, errOut, strings.Fields(input)[1:], turns, ui)
	case "/help", "/?":
		fmt.Fprintln(out, "/history             print the conversation so far")
		fmt.Fprintln(out, "/export [md|json] [dir]  write the conversation to a file")
		fmt.Fprintln(out, "/help                show this list")
		fmt.Fprintln(out, "/quit                leave")
	default:
		fmt.Fprintln(errOut, RenderWarning(fmt.Sprintf("unknown command %s (try /help)", name)))
	}
	return false
}

// exportTranscript handles /export [format] [dir].
func exportTranscript(out, errOut io.Writer, args []string, turns []model.Turn, ui config.UIConfig) {
	opts := &export.Options{
		OutputDir:      ".",
		UserLabel:      ui.UserLabel,
		AssistantLabel: ui.AssistantLabel,
	}
	format := "md"
	if len(args) > 0 {
		format = args[0]
	}
	if len(args) > 1 {
		opts.OutputDir = args[1]
	}

	path, err := export.ExportTurns(turns, format, opts)
	if err != nil {
		fmt.Fprintln(errOut, RenderError(err.Error()))
		return
	}
	fmt.Fprintln(out, RenderInfo("exported to "+path))
}

func inputHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, historyFileName)
}

func loadInputHistory(line *liner.State, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.ReadHistory(f)
}

// saveInputHistory writes the history owner-only.
func saveInputHistory(line *liner.State, path string, log *zap.Logger) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		log.Warn("failed to create history directory", zap.Error(err))
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		log.Warn("failed to save input history", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		log.Warn("failed to save input history", zap.Error(err))
	}
}
