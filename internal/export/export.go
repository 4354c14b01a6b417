// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/h0x/internal/model"
	"github.com/jeranaias/h0x/internal/util"
)

// ErrEmpty is returned when there is nothing to export.
var ErrEmpty = errors.New("conversation has no turns")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts turns into a file format.
type Exporter interface {
	Export(turns []model.Turn) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory
	OutputDir string

	// Title heads the Markdown export. Default: the first user turn
	Title string

	// UserLabel and AssistantLabel name the roles in Markdown.
	UserLabel      string
	AssistantLabel string

	// Now stamps the export; zero means time.Now
	Now time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:      ".",
		UserLabel:      model.RoleUser.DisplayName(),
		AssistantLabel: model.RoleAssistant.DisplayName(),
	}
}

func (o *Options) withDefaults() *Options {
	out := *DefaultOptions()
	if o == nil {
		out.Now = time.Now()
		return &out
	}
	if o.OutputDir != "" {
		out.OutputDir = o.OutputDir
	}
	if o.UserLabel != "" {
		out.UserLabel = o.UserLabel
	}
	if o.AssistantLabel != "" {
		out.AssistantLabel = o.AssistantLabel
	}
	out.Title = o.Title
	out.Now = o.Now
	if out.Now.IsZero() {
		out.Now = time.Now()
	}
	return &out
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ForFormat returns the exporter for "markdown"/"md" or "json".
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// ExportTurns exports turns in format and returns the file path.
func ExportTurns(turns []model.Turn, format string, opts *Options) (string, error) {
	exporter, err := ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	return ExportToFile(turns, exporter, opts)
}

// ExportToFile writes turns with exporter into opts.OutputDir and returns
// the file path. The name is derived from the title and the time.
func ExportToFile(turns []model.Turn, exporter Exporter, opts *Options) (string, error) {
	if len(turns) == 0 {
		return "", ErrEmpty
	}
	o := opts.withDefaults()

	content, err := exporter.Export(turns)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("h0x_%s_%s%s",
		sanitizeFilename(titleOf(turns, o.Title)),
		o.Now.Format("20060102_150405"),
		exporter.FileExtension(),
	)
	outputPath := filepath.Join(o.OutputDir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// titleOf returns title, or a preview of the first user turn.
func titleOf(turns []model.Turn, title string) string {
	if title != "" {
		return title
	}
	for _, t := range turns {
		if t.Role == model.RoleUser {
			return util.Preview(t.Content, 40)
		}
	}
	return "conversation"
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(strings.TrimSuffix(s, util.Ellipsis))
	if len(runes) > 50 {
		runes = runes[:50]
	}

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}
