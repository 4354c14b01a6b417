// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/h0x/internal/model"
)

// View renders the chat interface.
func (m Model) View() string {
	if !m.started {
		return m.landingView()
	}

	var b strings.Builder
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.inputView())
	return b.String()
}

// landingView is shown until the first submission.
func (m Model) landingView() string {
	body := lipgloss.JoinVertical(lipgloss.Center,
		m.theme.Logo.Render(m.ui.Logo),
		"",
		m.theme.Tagline.Render(m.ui.Tagline),
		"",
		m.inputView(),
		m.notice,
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) inputView() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// statusLine shows the spinner, the notice or the key hints.
func (m Model) statusLine() string {
	if m.state.Awaiting && m.state.Typing == "" {
		return m.spinner.View() + " " + m.theme.ThinkingText.Render(m.ui.ThinkingText)
	}
	if m.notice != "" {
		return m.notice
	}

	var hints []string
	for _, k := range m.keys.ShortHelp() {
		h := k.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	return m.theme.StatusBar.Render(strings.Join(hints, " · "))
}

// refreshTranscript re-renders the committed turns and the typing line.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
}

func (m Model) renderTranscript() string {
	width := m.theme.ContentWidth()
	wrap := lipgloss.NewStyle().Width(width)

	var blocks []string
	for _, t := range m.state.Turns {
		blocks = append(blocks, wrap.Render(m.renderTurn(t)))
	}
	if m.state.Awaiting && m.state.Typing != "" {
		line := m.theme.TypingLabel.Render(m.ui.AssistantLabel+" (typing)") + ": " +
			m.theme.AssistantText.Render(m.state.Typing)
		blocks = append(blocks, wrap.Render(line))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderTurn(t model.Turn) string {
	if t.Role == model.RoleUser {
		return m.theme.UserLabel.Render(m.ui.UserLabel) + ": " + m.theme.UserText.Render(t.Content)
	}
	return m.theme.AssistantLabel.Render(m.ui.AssistantLabel) + ": " + m.theme.AssistantText.Render(t.Content)
}
