// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoke

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Query parameter names understood by the endpoint.
const (
	ParamChatHistory = "chat_history"
	ParamQuery       = "query"
)

const upperhex = "0123456789ABCDEF"

// EncodeURIComponent percent-encodes s the way browsers' encodeURIComponent
// does. Every byte of the UTF-8 encoding outside A-Z a-z 0-9 - _ . ! ~ * ' ( )
// becomes %XX. Space is %20 and '+' is %2B, so both strict percent-decoding
// and form decoding give back s exactly.
func EncodeURIComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !isUnreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// MarshalHistory serializes history as compact JSON without HTML escaping,
// matching what JSON.stringify would produce.
func MarshalHistory(history []WireTurn) (string, error) {
	if history == nil {
		history = []WireTurn{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(history); err != nil {
		return "", fmt.Errorf("failed to marshal chat history: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// EncodeRequest builds the raw query string carrying history and query.
func EncodeRequest(history []WireTurn, query string) (string, error) {
	raw, err := MarshalHistory(history)
	if err != nil {
		return "", err
	}
	return ParamChatHistory + "=" + EncodeURIComponent(raw) +
		"&" + ParamQuery + "=" + EncodeURIComponent(query), nil
}

// BuildURL appends the encoded request to endpoint. Parameters already on
// the endpoint are kept in front of chat_history and query.
func BuildURL(endpoint string, history []WireTurn, query string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid endpoint %q: scheme and host required", endpoint)
	}

	params, err := EncodeRequest(history, query)
	if err != nil {
		return "", err
	}

	if u.RawQuery != "" {
		u.RawQuery += "&" + params
	} else {
		u.RawQuery = params
	}
	return u.String(), nil
}

// DecodeRequest is the receiving side of EncodeRequest. It parses a raw query
// string and returns the history and query it carries.
func DecodeRequest(rawQuery string) ([]WireTurn, string, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse request: %w", err)
	}

	history := []WireTurn{}
	if raw := values.Get(ParamChatHistory); raw != "" {
		if err := json.Unmarshal([]byte(raw), &history); err != nil {
			return nil, "", fmt.Errorf("failed to decode %s: %w", ParamChatHistory, err)
		}
	}
	return history, values.Get(ParamQuery), nil
}
