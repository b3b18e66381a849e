// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildapi

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// HistoryBackend is the subset of Client that History needs.
type HistoryBackend interface {
	Logs(ctx context.Context) ([]build.Log, error)
	DeleteLog(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) error
}

// History is a local mirror of the server's build history. Deletes
// are applied locally before the server call and undone if the call
// fails, so a list view updates immediately.
type History struct {
	backend HistoryBackend

	mu      sync.Mutex
	entries []build.Log
}

// NewHistory returns an empty mirror. Call Refresh to populate it.
func NewHistory(backend HistoryBackend) *History {
	return &History{backend: backend}
}

// Refresh replaces the mirror with the server's current list.
func (history *History) Refresh(ctx context.Context) error {
	logs, err := history.backend.Logs(ctx)
	if err != nil {
		return fmt.Errorf("refreshing build history: %w", err)
	}
	history.mu.Lock()
	history.entries = logs
	history.mu.Unlock()
	return nil
}

// Entries returns a copy of the mirrored records.
func (history *History) Entries() []build.Log {
	history.mu.Lock()
	defer history.mu.Unlock()
	return slices.Clone(history.entries)
}

// Delete removes id locally, then on the server. If the server call
// fails the record is put back where it was, except when the server
// reports it unknown: the local copy stays removed and the not-found
// error is returned.
func (history *History) Delete(ctx context.Context, id string) error {
	history.mu.Lock()
	index := slices.IndexFunc(history.entries, func(log build.Log) bool { return log.ID == id })
	var removed build.Log
	if index >= 0 {
		removed = history.entries[index]
		history.entries = slices.Delete(history.entries, index, index+1)
	}
	history.mu.Unlock()

	err := history.backend.DeleteLog(ctx, id)
	if err == nil {
		return nil
	}

	if index >= 0 && !IsNotFound(err) {
		history.mu.Lock()
		position := min(index, len(history.entries))
		history.entries = slices.Insert(history.entries, position, removed)
		history.mu.Unlock()
	}
	return fmt.Errorf("deleting build %s: %w", id, err)
}

// Clear empties the mirror, then the server. On failure the previous
// contents are restored.
func (history *History) Clear(ctx context.Context) error {
	history.mu.Lock()
	previous := history.entries
	history.entries = nil
	history.mu.Unlock()

	if err := history.backend.ClearHistory(ctx); err != nil {
		history.mu.Lock()
		if len(history.entries) == 0 {
			history.entries = previous
		}
		history.mu.Unlock()
		return fmt.Errorf("clearing build history: %w", err)
	}
	return nil
}
