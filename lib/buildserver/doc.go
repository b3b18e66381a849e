// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildserver is a self-contained implementation of the
// /api/build HTTP surface: build configuration, history, and build
// execution over a blocking endpoint, Server-Sent Events, and
// WebSocket.
//
// It exists so the console client and its transports can be run and
// tested end to end without the production admin server. Requests
// carry an HS256 bearer token whose role claim must be one of
// [AllowedRoles]. History is kept in a [Store]: [FileStore] for a
// single host, [RedisStore] for shared deployments.
package buildserver
