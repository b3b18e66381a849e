// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildcache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// DefaultEntries is the cache size when Options.MaxEntries is zero.
const DefaultEntries = 20

// entrySuffix names cache files.
const entrySuffix = ".bcc"

var (
	// ErrCorrupt marks an entry file that failed verification.
	ErrCorrupt = errors.New("buildcache: corrupt entry")

	// ErrNotFound is returned by Get and Latest when there is no
	// matching entry.
	ErrNotFound = errors.New("buildcache: no cached build")
)

// Entry is one finished build as the console saw it.
type Entry struct {
	BuildID     string            `cbor:"build_id"`
	Status      build.Status      `cbor:"status"`
	Message     string            `cbor:"message,omitempty"`
	Server      string            `cbor:"server,omitempty"`
	FinishedAt  time.Time         `cbor:"finished_at"`
	Output      string            `cbor:"output"`
	Categorized build.Categorized `cbor:"categorized"`
}

// Options configures Open.
type Options struct {
	// MaxEntries is how many results to keep. Defaults to
	// DefaultEntries.
	MaxEntries int
	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Cache is a directory of entries. Safe for concurrent use within one
// process; separate processes may race on pruning, which at worst
// removes an entry one slot early.
type Cache struct {
	directory  string
	maxEntries int
	logger     *slog.Logger
	mu         sync.Mutex
}

// Open returns a cache rooted at directory, creating it if needed.
func Open(directory string, options Options) (*Cache, error) {
	if directory == "" {
		return nil, errors.New("buildcache: directory is required")
	}
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return nil, fmt.Errorf("buildcache: creating %s: %w", directory, err)
	}
	if options.MaxEntries <= 0 {
		options.MaxEntries = DefaultEntries
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{directory: directory, maxEntries: options.MaxEntries, logger: options.Logger}, nil
}

// Directory returns the cache root.
func (cache *Cache) Directory() string { return cache.directory }

// Put stores entry, replacing any earlier entry with the same build
// ID, then prunes the oldest entries beyond the limit.
func (cache *Cache) Put(entry Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()

	names, err := cache.names()
	if err != nil {
		return err
	}
	key := idKey(entry.BuildID)
	name := fmt.Sprintf("%020d-%s%s", entry.FinishedAt.UnixNano(), key, entrySuffix)
	if err := cache.write(name, data); err != nil {
		return err
	}

	// The previous entry for the build goes only once its replacement
	// is in place.
	for _, existing := range names {
		if entry.BuildID != "" && existing != name && keyOf(existing) == key {
			if err := os.Remove(filepath.Join(cache.directory, existing)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				cache.logger.Warn("removing replaced cache entry", "file", existing, "error", err)
			}
		}
	}
	return cache.prune()
}

// List returns up to limit entries, newest first; zero means all.
// Corrupt entries are logged and skipped.
func (cache *Cache) List(limit int) ([]Entry, error) {
	cache.mu.Lock()
	names, err := cache.names()
	cache.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i := len(names) - 1; i >= 0; i-- {
		if limit > 0 && len(entries) == limit {
			break
		}
		entry, err := cache.read(names[i])
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			cache.logger.Warn("skipping cache entry", "file", names[i], "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Latest returns the most recently finished entry.
func (cache *Cache) Latest() (Entry, error) {
	entries, err := cache.List(1)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	return entries[0], nil
}

// Get returns the entry for buildID.
func (cache *Cache) Get(buildID string) (Entry, error) {
	cache.mu.Lock()
	names, err := cache.names()
	cache.mu.Unlock()
	if err != nil {
		return Entry{}, err
	}
	key := idKey(buildID)
	for i := len(names) - 1; i >= 0; i-- {
		if keyOf(names[i]) != key {
			continue
		}
		entry, err := cache.read(names[i])
		if err != nil {
			return Entry{}, fmt.Errorf("buildcache: reading %s: %w", buildID, err)
		}
		return entry, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, buildID)
}

// names returns entry file names in completion order.
func (cache *Cache) names() ([]string, error) {
	directoryEntries, err := os.ReadDir(cache.directory)
	if err != nil {
		return nil, fmt.Errorf("buildcache: listing %s: %w", cache.directory, err)
	}
	var names []string
	for _, directoryEntry := range directoryEntries {
		name := directoryEntry.Name()
		if directoryEntry.Type().IsRegular() && strings.HasSuffix(name, entrySuffix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (cache *Cache) read(name string) (Entry, error) {
	data, err := os.ReadFile(filepath.Join(cache.directory, name))
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(data)
}

func (cache *Cache) write(name string, data []byte) error {
	file, err := os.CreateTemp(cache.directory, ".entry-*")
	if err != nil {
		return fmt.Errorf("buildcache: creating temporary entry: %w", err)
	}
	temporaryPath := file.Name()

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("buildcache: writing entry: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("buildcache: closing entry: %w", err)
	}
	if err := os.Rename(temporaryPath, filepath.Join(cache.directory, name)); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("buildcache: renaming entry into place: %w", err)
	}
	return nil
}

func (cache *Cache) prune() error {
	names, err := cache.names()
	if err != nil {
		return err
	}
	for len(names) > cache.maxEntries {
		if err := os.Remove(filepath.Join(cache.directory, names[0])); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("buildcache: pruning %s: %w", names[0], err)
		}
		names = names[1:]
	}
	return nil
}

// idKey is the file-name component for buildID: a short digest, so
// arbitrary IDs are safe in paths.
func idKey(buildID string) string {
	sum := digest([]byte(buildID))
	return hex.EncodeToString(sum[:8])
}

// keyOf extracts the ID key from an entry file name.
func keyOf(name string) string {
	name = strings.TrimSuffix(name, entrySuffix)
	_, key, _ := strings.Cut(name, "-")
	return key
}
