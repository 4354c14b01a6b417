// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/model"
)

// JSONExporter exports turns in the same shape as the chat_history
// parameter, indented.
type JSONExporter struct{}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

// Export converts turns to JSON.
func (e *JSONExporter) Export(turns []model.Turn) ([]byte, error) {
	if len(turns) == 0 {
		return nil, ErrEmpty
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(invoke.EncodeHistory(turns)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
