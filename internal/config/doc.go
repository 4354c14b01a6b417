// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for h0x.
//
// Supports TOML, JSON and YAML configuration files, with sensible defaults,
// environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: main configuration structure
//   - EndpointConfig: inference endpoint URL and push transport
//   - LogConfig: debug level and optional log file
//   - UIConfig: role labels, placeholder and render rate
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Command line flags (applied by the cli package)
//   - Environment variables (H0X_*)
//   - ~/.h0x/config.toml, config.json, config.yaml or config.yml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	dialer := invoke.NewDialer(cfg.DialerConfig(), logger)
package config
