// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/h0x/internal/invoke"
	"github.com/jeranaias/h0x/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete h0x configuration.
type Config struct {
	Endpoint EndpointConfig `toml:"endpoint" json:"endpoint" yaml:"endpoint"`
	Log      LogConfig      `toml:"log" json:"log" yaml:"log"`
	UI       UIConfig       `toml:"ui" json:"ui" yaml:"ui"`
}

// EndpointConfig selects the inference service.
type EndpointConfig struct {
	// URL is the invoke endpoint; chat_history and query are appended to it
	URL string `toml:"url" json:"url" yaml:"url"`
	// Transport is "sse" (default) or "websocket"
	Transport string `toml:"transport" json:"transport" yaml:"transport"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Debug bool `toml:"debug" json:"debug" yaml:"debug"`
	// File receives logs while the TUI owns the terminal (empty = discard)
	File string `toml:"file" json:"file" yaml:"file"`
}

// UIConfig contains renderer settings.
type UIConfig struct {
	UserLabel      string `toml:"user_label" json:"user_label" yaml:"user_label"`
	AssistantLabel string `toml:"assistant_label" json:"assistant_label" yaml:"assistant_label"`
	Placeholder    string `toml:"placeholder" json:"placeholder" yaml:"placeholder"`
	ThinkingText   string `toml:"thinking_text" json:"thinking_text" yaml:"thinking_text"`
	Logo           string `toml:"logo" json:"logo" yaml:"logo"`
	Tagline        string `toml:"tagline" json:"tagline" yaml:"tagline"`
	// MaxFPS caps how often streaming text is redrawn
	MaxFPS int `toml:"max_fps" json:"max_fps" yaml:"max_fps"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			URL:       invoke.DefaultEndpoint,
			Transport: string(invoke.TransportSSE),
		},
		Log: LogConfig{},
		UI: UIConfig{
			UserLabel:      "あなた",
			AssistantLabel: "consome.ai",
			Placeholder:    "なんでも聞いてね",
			ThinkingText:   "応答を考えています…",
			Logo:           "h0x",
			Tagline:        "こんにちは。私たちは無限のアイデアを持つプロダクトスタジオです。",
			MaxFPS:         30,
		},
	}
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Endpoint.URL == "" {
		cfg.Endpoint.URL = defaults.Endpoint.URL
	}
	if cfg.Endpoint.Transport == "" {
		cfg.Endpoint.Transport = defaults.Endpoint.Transport
	}

	ui, def := &cfg.UI, defaults.UI
	setDefault(&ui.UserLabel, def.UserLabel)
	setDefault(&ui.AssistantLabel, def.AssistantLabel)
	setDefault(&ui.Placeholder, def.Placeholder)
	setDefault(&ui.ThinkingText, def.ThinkingText)
	setDefault(&ui.Logo, def.Logo)
	setDefault(&ui.Tagline, def.Tagline)
	if ui.MaxFPS == 0 {
		ui.MaxFPS = def.MaxFPS
	}
}

func setDefault(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// DialerConfig converts the endpoint section for invoke.NewDialer.
// Call Validate first; an unknown transport falls back to SSE.
func (c *Config) DialerConfig() *invoke.Config {
	transport, err := invoke.ParseTransport(c.Endpoint.Transport)
	if err != nil {
		transport = invoke.TransportSSE
	}
	return &invoke.Config{
		Endpoint:  c.Endpoint.URL,
		Transport: transport,
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// configFileNames are tried in order by Load.
var configFileNames = []string{"config.toml", "config.json", "config.yaml", "config.yml"}

// ConfigDir returns the h0x configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".h0x"), nil
}

// DefaultPath returns the path of the TOML config file.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileNames[0]), nil
}

// findConfigFile returns the first existing config file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ResolvePath returns path when set, else the file Load would read, else
// DefaultPath.
func ResolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if found := findConfigFile(dir); found != "" {
		return found, nil
	}
	return filepath.Join(dir, configFileNames[0]), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from path, or from the first config file found
// in ConfigDir when path is empty. A missing default file is not an error.
// Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromPath(path)
	}

	dir, err := ConfigDir()
	if err == nil {
		if found := findConfigFile(dir); found != "" {
			return LoadFromPath(found)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension; anything other than .json, .yaml and .yml is TOML.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data, formatFor(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Format is a config file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Parse decodes data and fills defaults. It does not apply environment
// overrides or validate.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := &Config{}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, cfg)
	case FormatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", format, err)
	}

	fillDefaults(cfg)
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg as TOML to path, or to DefaultPath when path is empty.
// The write is atomic and the file is created 0600.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	data, err := cfg.MarshalTOML()
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MarshalTOML renders cfg with the standard header comment.
func (c *Config) MarshalTOML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# h0x configuration file\n")
	buf.WriteString("# Generated by h0x - edit with care\n")
	buf.WriteString("#\n")
	buf.WriteString("# Environment overrides: H0X_ENDPOINT, H0X_TRANSPORT, H0X_DEBUG, H0X_LOG_FILE\n\n")

	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Endpoint.URL); err != nil {
		errs = append(errs, ValidationError{"endpoint.url", err.Error()})
	} else {
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			errs = append(errs, ValidationError{"endpoint.url", fmt.Sprintf("unsupported scheme %q", u.Scheme)})
		}
		if u.Host == "" {
			errs = append(errs, ValidationError{"endpoint.url", "host is required"})
		}
	}

	if _, err := invoke.ParseTransport(c.Endpoint.Transport); err != nil {
		errs = append(errs, ValidationError{"endpoint.transport", err.Error()})
	}

	if c.UI.MaxFPS < 1 || c.UI.MaxFPS > 120 {
		errs = append(errs, ValidationError{"ui.max_fps", fmt.Sprintf("must be between 1 and 120, got %d", c.UI.MaxFPS)})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - H0X_ENDPOINT: overrides endpoint.url
//   - H0X_TRANSPORT: overrides endpoint.transport
//   - H0X_DEBUG: "1" or "true" enables debug logging
//   - H0X_LOG_FILE: overrides log.file
func (c *Config) ApplyEnvOverrides() {
	if endpoint := os.Getenv("H0X_ENDPOINT"); endpoint != "" {
		c.Endpoint.URL = endpoint
	}
	if transport := os.Getenv("H0X_TRANSPORT"); transport != "" {
		c.Endpoint.Transport = transport
	}
	if debug := os.Getenv("H0X_DEBUG"); debug != "" {
		c.Log.Debug = debug == "1" || strings.EqualFold(debug, "true")
	}
	if file := os.Getenv("H0X_LOG_FILE"); file != "" {
		c.Log.File = file
	}
}

// =============================================================================
// DOT NOTATION ACCESS
// =============================================================================

// Get retrieves a value by its TOML key path, e.g. "endpoint.url".
func (c *Config) Get(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field.Interface(), nil
		}
		if field.Kind() != reflect.Struct {
			return nil, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return nil, fmt.Errorf("invalid key: %s", key)
}

// Keys returns every leaf key in dot notation.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := prefix + f.Tag.Get("toml")
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, name+".")
				continue
			}
			keys = append(keys, name)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

func fieldByTag(v reflect.Value, tag string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == tag {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}
