// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// FileStore keeps the history as one JSON array on disk. Every write
// replaces the file atomically, so a crash leaves either the old or
// the new history. Safe for concurrent use within one process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on
// the first write; its parent directory is created if missing.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (store *FileStore) Append(_ context.Context, log build.Log) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	logs, err := store.load()
	if err != nil {
		return err
	}
	logs = append(logs, log)
	sortNewestFirst(logs)
	if len(logs) > MaxHistory {
		logs = logs[:MaxHistory]
	}
	return store.save(logs)
}

func (store *FileStore) List(_ context.Context, limit int) ([]build.Log, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	logs, err := store.load()
	if err != nil {
		return nil, err
	}
	sortNewestFirst(logs)
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (store *FileStore) Delete(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	logs, err := store.load()
	if err != nil {
		return err
	}
	kept := logs[:0]
	for _, log := range logs {
		if log.ID != id {
			kept = append(kept, log)
		}
	}
	if len(kept) == len(logs) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return store.save(kept)
}

func (store *FileStore) Clear(context.Context) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.save([]build.Log{})
}

// load reads the history. A missing file is an empty history.
func (store *FileStore) load() ([]build.Log, error) {
	data, err := os.ReadFile(store.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history %s: %w", store.path, err)
	}
	var logs []build.Log
	if err := json.Unmarshal(data, &logs); err != nil {
		return nil, fmt.Errorf("parsing history %s: %w", store.path, err)
	}
	return logs, nil
}

func (store *FileStore) save(logs []build.Log) error {
	data, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	data = append(data, '\n')

	directory := filepath.Dir(store.path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	file, err := os.CreateTemp(directory, ".history-*.json")
	if err != nil {
		return fmt.Errorf("creating temporary history file: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary history file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary history file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary history file: %w", err)
	}
	if err := os.Rename(temporaryPath, store.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming history file into place: %w", err)
	}
	return nil
}
