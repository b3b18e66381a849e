// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package build defines the wire types shared by the build console
// client, the categorizer, and the reference build server: the build
// configuration, the stream event union, categorized output, and the
// history records served by /api/build/logs.
//
// JSON field names match the deployed build server so the client can
// talk to it unchanged.
//
// This package depends on no other buildconsole packages.
package build
