// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the build console client's YAML configuration.
//
// The file is found through BUILDCONSOLE_CONFIG or, when that is unset,
// at $XDG_CONFIG_HOME/buildconsole/config.yaml. A missing default file
// is not an error; the built-in defaults point at a local server.
// Unknown keys are rejected so typos surface instead of silently
// falling back to defaults.
//
// String fields support ${VAR} and ${VAR:-default} expansion, which is
// the recommended way to supply the token:
//
//	server_url: https://builds.example.com
//	token: ${BUILDCONSOLE_TOKEN}
//	transport: ws
package config
