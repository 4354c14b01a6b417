// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package invoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Source is one open push channel. Next blocks until the next frame payload
// arrives. Close ends the channel and may be called concurrently with Next.
type Source interface {
	Next() (string, error)
	Close() error
}

// =============================================================================
// DIALER CONFIGURATION
// =============================================================================

// Transport selects how the push channel is carried.
type Transport string

const (
	TransportSSE       Transport = "sse"
	TransportWebSocket Transport = "websocket"
)

// DefaultEndpoint is the public inference endpoint.
const DefaultEndpoint = "https://resumellm-dfd22fa2ded8.herokuapp.com/invoke"

// Config holds configuration options for the Dialer.
type Config struct {
	// Endpoint is the inference URL without chat_history/query parameters.
	Endpoint string

	// Transport is TransportSSE (default) or TransportWebSocket.
	Transport Transport

	// Header is added to every outbound request.
	Header http.Header
}

// DefaultConfig returns the default dialer configuration.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:  DefaultEndpoint,
		Transport: TransportSSE,
	}
}

// ParseTransport maps a config string onto a Transport.
func ParseTransport(s string) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sse":
		return TransportSSE, nil
	case "websocket", "ws":
		return TransportWebSocket, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want sse or websocket)", s)
	}
}

// =============================================================================
// DIALER
// =============================================================================

// Dialer opens push channels against the configured endpoint.
// It is safe for concurrent use; SetEndpoint affects later Opens only.
type Dialer struct {
	mu         sync.RWMutex
	config     Config
	httpClient *http.Client
	wsDialer   *websocket.Dialer
	logger     *zap.Logger
}

// NewDialer creates a dialer. A nil config uses DefaultConfig and a nil
// logger discards output.
func NewDialer(config *Config, logger *zap.Logger) *Dialer {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportSSE
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dialer{
		config: cfg,
		// No overall timeout: a session stays open until terminal or cancel.
		httpClient: &http.Client{},
		wsDialer:   websocket.DefaultDialer,
		logger:     logger,
	}
}

// SetHTTPClient replaces the client used for SSE requests.
func (d *Dialer) SetHTTPClient(c *http.Client) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.httpClient = c
}

// SetEndpoint retargets the dialer.
func (d *Dialer) SetEndpoint(endpoint string, transport Transport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Endpoint = endpoint
	if transport != "" {
		d.config.Transport = transport
	}
}

// Endpoint returns the current endpoint and transport.
func (d *Dialer) Endpoint() (string, Transport) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config.Endpoint, d.config.Transport
}

// Open builds the request target from history and query and opens one push
// channel. Canceling ctx aborts the dial and any later read.
func (d *Dialer) Open(ctx context.Context, history []WireTurn, query string) (Source, error) {
	d.mu.RLock()
	cfg := d.config
	httpClient := d.httpClient
	d.mu.RUnlock()

	target, err := BuildURL(cfg.Endpoint, history, query)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeConnection, Message: "failed to build request", Cause: err}
	}

	d.logger.Debug("opening push channel",
		zap.String("transport", string(cfg.Transport)),
		zap.String("endpoint", cfg.Endpoint),
		zap.Int("history", len(history)),
		zap.Int("target_bytes", len(target)))

	switch cfg.Transport {
	case TransportWebSocket:
		return d.openWebSocket(ctx, target, cfg.Header)
	default:
		return d.openSSE(ctx, httpClient, target, cfg.Header)
	}
}

func (d *Dialer) openSSE(ctx context.Context, client *http.Client, target string, header http.Header) (Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeConnection, Message: "request failed", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &TransportError{
			Type:    ErrTypeStatus,
			Message: "unexpected status from endpoint",
			Status:  resp.StatusCode,
		}
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, &TransportError{
			Type:    ErrTypeProtocol,
			Message: fmt.Sprintf("unexpected content type %q", resp.Header.Get("Content-Type")),
			Status:  resp.StatusCode,
		}
	}

	return NewSSESource(resp.Body), nil
}

func (d *Dialer) openWebSocket(ctx context.Context, target string, header http.Header) (Source, error) {
	wsTarget, err := websocketURL(target)
	if err != nil {
		return nil, &TransportError{Type: ErrTypeConnection, Message: "failed to build websocket url", Cause: err}
	}

	conn, resp, err := d.wsDialer.DialContext(ctx, wsTarget, header)
	if err != nil {
		te := &TransportError{Type: ErrTypeConnection, Message: "websocket dial failed", Cause: err}
		if resp != nil {
			te.Status = resp.StatusCode
			if errors.Is(err, websocket.ErrBadHandshake) {
				te.Type = ErrTypeStatus
			}
		}
		return nil, te
	}

	return NewWebSocketSource(conn), nil
}

// websocketURL maps http(s) targets onto ws(s). ws and wss pass through.
func websocketURL(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}
