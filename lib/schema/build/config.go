// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"errors"
	"fmt"
)

// ModeFull is the only build mode the server accepts.
const ModeFull = "full"

// Memory bounds for the Node heap given to the build, in megabytes.
const (
	MinMemory = 512
	MaxMemory = 65536
)

// Config is the per-run build configuration. It is sent verbatim to
// the trigger endpoint and stored with each history record.
type Config struct {
	Mode           string `json:"mode"`
	Memory         int    `json:"memory"`
	InstallPackage string `json:"installPackage"`
	LegacyPeerDeps bool   `json:"legacyPeerDeps"`
	SkipInstall    bool   `json:"skipInstall"`
	DryRun         bool   `json:"dryRun"`
}

// DefaultConfig returns the configuration a fresh server starts with.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeFull,
		Memory:         4096,
		LegacyPeerDeps: true,
	}
}

// Validate reports every problem with the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Mode {
	case "":
		errs = append(errs, errors.New("mode is required"))
	case ModeFull:
	default:
		errs = append(errs, fmt.Errorf("unsupported mode %q (want %q)", c.Mode, ModeFull))
	}
	if c.Memory < MinMemory || c.Memory > MaxMemory {
		errs = append(errs, fmt.Errorf("memory %d MB outside [%d, %d]", c.Memory, MinMemory, MaxMemory))
	}
	return errors.Join(errs...)
}
