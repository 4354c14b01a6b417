// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/fakeserver"
	"github.com/jeranaias/h0x/internal/model"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// isolate points HOME at a temp dir and clears H0X_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{"H0X_ENDPOINT", "H0X_TRANSPORT", "H0X_DEBUG", "H0X_LOG_FILE"} {
		t.Setenv(k, "")
	}
	return home
}

func startFakeServer(t *testing.T) string {
	t.Helper()
	srv := fakeserver.New(fakeserver.Config{}, zap.NewNop())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.RunWithListener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })
	return "http://" + ln.Addr().String() + "/invoke"
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestAsk_PrintsReply(t *testing.T) {
	isolate(t)
	url := startFakeServer(t)

	out, errOut, err := run(t, "--endpoint", url, "ask", "hello", "world")
	require.NoError(t, err, "stderr: %s", errOut)

	if out != "You said: hello world (history: 0 turns)\n" {
		t.Errorf("stdout = %q, want %q", out, "You said: hello world (history: 0 turns)\n")
	}
	// Not a terminal, so no typing line
	assert.NotContains(t, errOut, "(typing)")
}

func TestAsk_ControlCall(t *testing.T) {
	isolate(t)
	url := startFakeServer(t)

	out, errOut, err := run(t, "--endpoint", url, "ask", "fn", "open_settings")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "function requested: open_settings")
}

func TestAsk_DroppedChannelFails(t *testing.T) {
	isolate(t)
	url := startFakeServer(t)

	out, _, err := run(t, "--endpoint", url, "ask", "fail")
	require.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "push channel closed")
}

func TestAsk_ConnectionRefused(t *testing.T) {
	isolate(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, _, err = run(t, "--endpoint", "http://"+addr+"/invoke", "ask", "hi")
	assert.Error(t, err)
}

func TestAsk_BlankQuery(t *testing.T) {
	isolate(t)
	_, _, err := run(t, "ask", "  ")
	assert.True(t, errors.Is(err, conversation.ErrBlankQuery), "err = %v", err)
}

func TestFlags_Validated(t *testing.T) {
	isolate(t)

	_, _, err := run(t, "--transport", "carrier-pigeon", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint.transport")

	_, _, err = run(t, "--endpoint", "ftp://x/invoke", "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint.url")
}

func TestConfigCmd(t *testing.T) {
	home := isolate(t)

	out, _, err := run(t, "--endpoint", "http://127.0.0.1:8787/invoke", "--transport", "ws", "config")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# h0x configuration file"))

	cfg, err := config.Parse([]byte(out), config.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8787/invoke", cfg.Endpoint.URL)
	assert.Equal(t, "ws", cfg.Endpoint.Transport)

	out, _, err = run(t, "config", "--path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".h0x", "config.toml")+"\n", out)

	out, _, err = run(t, "config", "--get", "ui.max_fps")
	require.NoError(t, err)
	assert.Equal(t, "30\n", out)

	_, _, err = run(t, "config", "--get", "ui.nope")
	assert.Error(t, err)
}

func TestConfigCmd_ReadsFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "h0x.toml")
	cfg := config.Default()
	cfg.UI.UserLabel = "me"
	require.NoError(t, config.Save(cfg, path))

	out, _, err := run(t, "--config", path, "config", "--get", "ui.user_label")
	require.NoError(t, err)
	assert.Equal(t, "me\n", out)
}

func TestConfigInit(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".h0x", "config.toml")

	out, _, err := run(t, "--endpoint", "http://127.0.0.1:8787/invoke", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8787/invoke", cfg.Endpoint.URL)

	// Existing file is kept
	_, _, err = run(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = run(t, "config", "init", "--force")
	require.NoError(t, err)
	cfg, err = config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Endpoint.URL, cfg.Endpoint.URL)
}

func TestSlashCommand(t *testing.T) {
	ui := config.Default().UI
	turns := []model.Turn{model.NewUserTurn("hi"), model.NewAssistantTurn("hello")}

	tests := []struct {
		input   string
		quit    bool
		wantOut string
		wantErr string
	}{
		{"/quit", true, "", ""},
		{"/EXIT", true, "", ""},
		{"/history", false, ui.UserLabel + ": hi\n" + ui.AssistantLabel + ": hello\n", ""},
		{"/help", false, "/history", ""},
		{"/bogus arg", false, "", "unknown command /bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out, errOut bytes.Buffer
			quit := slashCommand(&out, &errOut, tt.input, turns, ui)
			assert.Equal(t, tt.quit, quit)
			assert.Contains(t, out.String(), tt.wantOut)
			assert.Contains(t, errOut.String(), tt.wantErr)
		})
	}

	var out, errOut bytes.Buffer
	slashCommand(&out, &errOut, "/history", nil, ui)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "no messages")
}

func TestSlashCommand_Export(t *testing.T) {
	ui := config.Default().UI
	turns := []model.Turn{model.NewUserTurn("hi"), model.NewAssistantTurn("hello")}
	dir := t.TempDir()

	var out, errOut bytes.Buffer
	slashCommand(&out, &errOut, "/export json "+dir, turns, ui)
	require.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "exported to "+dir)

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	out.Reset()
	slashCommand(&out, &errOut, "/export md "+dir, nil, ui)
	assert.Contains(t, errOut.String(), "no turns")
}

func TestReport(t *testing.T) {
	ui := config.Default().UI
	boom := errors.New("boom")

	tests := []struct {
		name    string
		u       conversation.Update
		labels  bool
		wantOut string
		wantErr string
		err     error
	}{
		{"plain reply", conversation.Update{Kind: conversation.UpdateFinalized, Text: "hi"}, false, "hi\n", "", nil},
		{"labelled reply", conversation.Update{Kind: conversation.UpdateFinalized, Text: "hi"}, true, ui.AssistantLabel + ": hi\n", "", nil},
		{"empty reply", conversation.Update{Kind: conversation.UpdateFinalized}, false, "", "(no reply)", nil},
		{"control call", conversation.Update{Kind: conversation.UpdateControlCall, Text: "f"}, false, "", "function requested: f", nil},
		{"errored", conversation.Update{Kind: conversation.UpdateErrored, Err: boom}, false, "", "", boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			err := report(&out, &errOut, ui, tt.u, tt.labels)
			assert.Equal(t, tt.err, err)
			if tt.wantOut == "" {
				assert.Empty(t, out.String())
			} else {
				assert.Equal(t, tt.wantOut, out.String())
			}
			assert.Contains(t, errOut.String(), tt.wantErr)
		})
	}
}

func TestTypingLine_DisabledWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	tl := newTypingLine(&buf, config.Default().UI)
	tl.listen(conversation.Update{Kind: conversation.UpdatePartial, State: conversation.State{Awaiting: true, Typing: "abc"}})
	assert.Empty(t, buf.String())
}

func TestOutcome(t *testing.T) {
	o := &outcome{}
	o.listen(conversation.Update{Kind: conversation.UpdatePartial})
	_, ok := o.get()
	assert.False(t, ok)

	o.listen(conversation.Update{Kind: conversation.UpdateFinalized, Text: "x"})
	u, ok := o.get()
	require.True(t, ok)
	assert.Equal(t, "x", u.Text)

	o.reset()
	_, ok = o.get()
	assert.False(t, ok)
}
