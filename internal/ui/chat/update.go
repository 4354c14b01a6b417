// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/h0x/internal/conversation"
	"github.com/jeranaias/h0x/internal/ui/styles"
)

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case UpdateMsg:
		m.applyUpdate(msg.Update)
		return m, nil

	case StreamTickMsg:
		if u, ok := m.forwarder.Flush(); ok {
			m.applyUpdate(u)
		}
		return m, m.forwarder.tickCmd()

	case ConfigReloadedMsg:
		m.ui = msg.UI
		m.input.Placeholder = msg.UI.Placeholder
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.state.Awaiting {
			m.controller.Cancel()
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.state.Awaiting {
			m.controller.Cancel()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input to the controller. Blank input stays put.
func (m Model) submit() (tea.Model, tea.Cmd) {
	err := m.controller.Submit(m.ctx, m.input.Value())
	switch {
	case errors.Is(err, conversation.ErrBlankQuery):
		return m, nil
	case errors.Is(err, conversation.ErrSessionActive):
		m.notice = styles.RenderWarning("still answering; your message was added to the conversation")
	case err != nil:
		m.notice = styles.RenderError(err.Error())
		return m, nil
	default:
		m.notice = ""
	}

	m.input.Reset()
	m.started = true
	m.state = m.controller.Snapshot()
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m, nil
}

func (m *Model) applyUpdate(u conversation.Update) {
	follow := m.viewport.AtBottom()
	m.state = u.State
	if len(u.State.Turns) > 0 {
		m.started = true
	}

	switch u.Kind {
	case conversation.UpdateControlCall:
		m.notice = styles.RenderInfo(fmt.Sprintf("function requested: %s", u.Text))
	case conversation.UpdateErrored:
		if u.Err != nil {
			m.notice = styles.RenderError(u.Err.Error())
		}
	case conversation.UpdateFinalized:
		if u.Text == "" {
			m.notice = styles.RenderInfo("no reply")
		}
	}

	m.refreshTranscript()
	if follow {
		m.viewport.GotoBottom()
	}
}
