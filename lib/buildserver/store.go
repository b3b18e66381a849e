// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"sort"

	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// MaxHistory is how many records a Store keeps. Appending beyond it
// drops the oldest.
const MaxHistory = 100

// ErrNotFound is returned by Store.Delete for an unknown ID.
var ErrNotFound = errors.New("buildserver: build not found")

// Store persists build history.
type Store interface {
	// Append records a finished build and trims the history to
	// MaxHistory entries.
	Append(ctx context.Context, log build.Log) error

	// List returns up to limit records, newest first. A limit of
	// zero or less returns everything.
	List(ctx context.Context, limit int) ([]build.Log, error)

	// Delete removes one record.
	Delete(ctx context.Context, id string) error

	// Clear removes every record.
	Clear(ctx context.Context) error
}

// sortNewestFirst orders logs by descending timestamp. Ties keep their
// relative order.
func sortNewestFirst(logs []build.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
}
