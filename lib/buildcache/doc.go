// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildcache keeps the most recent build results on local
// disk so that reports can be produced without the server.
//
// Each result is one file: a four-byte magic, the BLAKE3 digest of
// the payload, and the payload itself, zstd-compressed CBOR. The
// digest is checked on every read; a damaged file is reported as
// [ErrCorrupt] and skipped by [Cache.List]. File names sort in
// completion order, which is how pruning finds the oldest entry.
package buildcache
