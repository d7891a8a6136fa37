// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sheet

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DebounceDelay collapses the burst of events a single save produces.
const DebounceDelay = 200 * time.Millisecond

// Watch reloads the store whenever the workbook changes on disk, until ctx
// is done. The directory is watched rather than the file so that atomic
// replacements (ours included) are seen. A reload that fails keeps the
// previous copy.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}
	s.logger.Info("watching workbook", zap.String("path", s.path))

	timer := time.NewTimer(DebounceDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(DebounceDelay)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("workbook watcher error", zap.Error(err))

		case <-timer.C:
			if err := s.Reload(); err != nil {
				s.logger.Warn("workbook reload failed", zap.Error(err))
				continue
			}
			s.logger.Info("workbook reloaded", zap.Int("rows", s.Len()))
		}
	}
}
