// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/h0x/internal/model"
)

// MarkdownExporter exports turns as Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	return &MarkdownExporter{options: opts.withDefaults()}
}

// Export renders a YAML front matter block, a title and one section per
// turn. Turn content is written verbatim.
func (e *MarkdownExporter) Export(turns []model.Turn) ([]byte, error) {
	if len(turns) == 0 {
		return nil, ErrEmpty
	}
	o := e.options
	title := titleOf(turns, o.Title)

	var sb strings.Builder

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(title)))
	sb.WriteString(fmt.Sprintf("turns: %d\n", len(turns)))
	sb.WriteString(fmt.Sprintf("exported: %s\n", o.Now.Format(time.RFC3339)))
	sb.WriteString("generator: h0x\n")
	sb.WriteString("---\n\n")

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	for i, t := range turns {
		label := o.AssistantLabel
		if t.Role == model.RoleUser {
			label = o.UserLabel
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", escapeMarkdown(label)))
		sb.WriteString(t.Content)
		sb.WriteString("\n\n")

		if i < len(turns)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}

// escapeYAML quotes a scalar when it contains YAML syntax.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
