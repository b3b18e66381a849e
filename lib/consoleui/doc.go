// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package consoleui is the interactive terminal view of a streamed
// build. It renders the live output of a [buildstream.Client] with a
// status header and a scrollbar, and can switch to the categorized
// summary once the build reports one.
//
// The client's OnUpdate callback feeds a [Feed]; the model listens on
// the feed from a tea.Cmd, the same way other bubbletea programs
// consume an external event source. Snapshots are cumulative, so the
// feed keeps only the latest one when the UI falls behind.
package consoleui
