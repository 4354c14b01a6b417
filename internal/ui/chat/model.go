// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/ui/styles"
)

// Controller is the part of conversation.Controller the view drives.
type Controller interface {
	Submit(ctx context.Context, query string) error
	Cancel()
	Snapshot() conversation.State
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx        context.Context
	controller Controller
	forwarder  *Forwarder
	ui         config.UIConfig
	theme      *styles.Theme
	keys       KeyMap

	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model

	// state is the last snapshot received from the controller
	state conversation.State
	// started flips on the first successful submission
	started bool
	notice  string

	width  int
	height int
	ready  bool
}

// New creates the chat model. ctx bounds every session it submits.
func New(ctx context.Context, ctrl Controller, fwd *Forwarder, ui config.UIConfig, theme *styles.Theme) Model {
	if fwd == nil {
		fwd = NewForwarder(ui.MaxFPS)
	}
	if theme == nil {
		theme = styles.NewTheme()
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = theme.InputPrompt
	ti.PlaceholderStyle = theme.InputPlaceholder
	ti.Placeholder = ui.Placeholder
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	snap := ctrl.Snapshot()
	return Model{
		ctx:        ctx,
		controller: ctrl,
		forwarder:  fwd,
		ui:         ui,
		theme:      theme,
		keys:       DefaultKeyMap(),
		input:      ti,
		spinner:    sp,
		viewport:   viewport.New(80, 20),
		state:      snap,
		started:    len(snap.Turns) > 0,
		width:      80,
		height:     24,
	}
}

// Init starts the cursor blink, the spinner and the stream tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.forwarder.tickCmd(),
	)
}

// State returns the last controller snapshot the view rendered.
func (m Model) State() conversation.State {
	return m.state
}

// Started reports whether the transcript layout is active.
func (m Model) Started() bool {
	return m.started
}

// Notice returns the current one-line notice, if any.
func (m Model) Notice() string {
	return m.notice
}

// InputValue returns the text in the input box.
func (m Model) InputValue() string {
	return m.input.Value()
}

// resize lays out the viewport and input for the terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	// Input box (border + line) and status line
	const chrome = 3
	vpHeight := height - chrome - 1
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	m.input.Width = width - 4 - len(m.input.Prompt)
	if m.input.Width < 10 {
		m.input.Width = 10
	}
	m.ready = true
	m.refreshTranscript()
}
