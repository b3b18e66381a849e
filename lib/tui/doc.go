// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui holds the palette and labels that the console's terminal
// renderers share, so the live view and the text report agree on how
// a status or category looks.
package tui
