// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/h0x/internal/config"
	"github.com/jeranaias/h0x/internal/conversation"
)

// UpdateMsg delivers a controller update to the program.
type UpdateMsg struct {
	Update conversation.Update
}

// StreamTickMsg drives flushing of coalesced partial updates.
type StreamTickMsg struct {
	Time time.Time
}

// ConfigReloadedMsg carries new UI settings after the config file changed.
type ConfigReloadedMsg struct {
	UI config.UIConfig
}
