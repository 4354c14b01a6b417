// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/util"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the minimum width we'll use for the typing line
	MinTerminalWidth = 40
)

// terminalWidth returns the width of w if it is a terminal.
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth, true
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth, true
	}
	return width, true
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

var (
	errorLabel   = color.New(color.FgRed, color.Bold)
	infoLabel    = color.New(color.FgCyan)
	userColor    = color.New(color.FgCyan, color.Bold)
	replyColor   = color.New(color.FgMagenta, color.Bold)
	mutedColor   = color.New(color.Faint, color.Italic)
	warningLabel = color.New(color.FgYellow)
)

// RenderError formats an error line.
func RenderError(msg string) string {
	return errorLabel.Sprint("error:") + " " + msg
}

// RenderInfo formats an informational line.
func RenderInfo(msg string) string {
	return infoLabel.Sprint(msg)
}

// RenderWarning formats a warning line.
func RenderWarning(msg string) string {
	return warningLabel.Sprint(msg)
}

// renderTurn formats a labelled transcript line.
func renderTurn(ui config.UIConfig, user bool, text string) string {
	if user {
		return userColor.Sprint(ui.UserLabel) + ": " + text
	}
	return replyColor.Sprint(ui.AssistantLabel) + ": " + text
}

// =============================================================================
// TYPING LINE
// =============================================================================

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[K"

// typingLine shows the reply in flight on a single terminal line. It does
// nothing when the writer is not a terminal.
type typingLine struct {
	mu      sync.Mutex
	w       io.Writer
	ui      config.UIConfig
	width   int
	enabled bool
	shown   bool
}

func newTypingLine(w io.Writer, ui config.UIConfig) *typingLine {
	width, ok := terminalWidth(w)
	return &typingLine{w: w, ui: ui, width: width, enabled: ok}
}

// listen is a conversation.Listener.
func (t *typingLine) listen(u conversation.Update) {
	if !t.enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	switch u.Kind {
	case conversation.UpdateUserTurn:
		if u.State.Awaiting {
			t.draw(mutedColor.Sprint(t.ui.ThinkingText))
		}
	case conversation.UpdatePartial:
		prefix := t.ui.AssistantLabel + " (typing): "
		avail := t.width - util.StringWidth(prefix) - 1
		tail := util.TruncateWidthLeft(strings.Join(strings.Fields(u.State.Typing), " "), avail)
		t.draw(mutedColor.Sprint(prefix) + tail)
	default:
		if t.shown {
			fmt.Fprint(t.w, clearLine)
			t.shown = false
		}
	}
}

func (t *typingLine) draw(s string) {
	fmt.Fprint(t.w, clearLine+s)
	t.shown = true
}

// =============================================================================
// OUTCOME
// =============================================================================

// outcome keeps the last terminal update of a submission.
type outcome struct {
	mu    sync.Mutex
	final conversation.Update
	done  bool
}

func (o *outcome) listen(u conversation.Update) {
	switch u.Kind {
	case conversation.UpdateFinalized, conversation.UpdateControlCall, conversation.UpdateErrored:
		o.mu.Lock()
		o.final = u
		o.done = true
		o.mu.Unlock()
	}
}

func (o *outcome) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.final = conversation.Update{}
	o.done = false
}

func (o *outcome) get() (conversation.Update, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.final, o.done
}

// report prints a finished submission. With labels the reply is prefixed by
// the assistant label; without, stdout carries only the reply text. An
// errored submission is returned as the error.
func report(out, errOut io.Writer, ui config.UIConfig, u conversation.Update, labels bool) error {
	switch u.Kind {
	case conversation.UpdateFinalized:
		if u.Text == "" {
			fmt.Fprintln(errOut, RenderWarning("(no reply)"))
			return nil
		}
		if labels {
			fmt.Fprintln(out, renderTurn(ui, false, u.Text))
		} else {
			fmt.Fprintln(out, u.Text)
		}
	case conversation.UpdateControlCall:
		fmt.Fprintln(errOut, RenderInfo("function requested: "+u.Text))
	case conversation.UpdateErrored:
		return u.Err
	}
	return nil
}
