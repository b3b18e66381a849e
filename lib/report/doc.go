// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders categorized build results as Markdown, as a
// standalone HTML page, or as styled terminal text.
package report
