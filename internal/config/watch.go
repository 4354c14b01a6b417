// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce groups the burst of events editors produce on save.
const DefaultWatchDebounce = 150 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to onChange.
// Load or validation failures go to onError (which may be nil) and the
// previous config stays in effect. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file, so replace-by-rename
// saves (including AtomicWriteFile) are picked up.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}

	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(DefaultWatchDebounce)
			} else {
				timer.Reset(DefaultWatchDebounce)
			}
			trigger = timer.C

		case <-trigger:
			trigger = nil
			cfg, err := LoadFromPath(absPath)
			if err != nil {
				report(err)
				continue
			}
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			report(fmt.Errorf("config watcher: %w", err))
		}
	}
}
