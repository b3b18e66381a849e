// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildconsole/cmd/buildconsole/cli"
	"github.com/bureau-foundation/buildconsole/lib/buildapi"
	"github.com/bureau-foundation/buildconsole/lib/buildcache"
	"github.com/bureau-foundation/buildconsole/lib/config"
)

// Connection holds the flags shared by every command that talks to
// the server or the local cache. Flags left empty fall back to the
// config file.
//
// Exported so that FlagsFromParams sees it as a FlagBinder.
type Connection struct {
	ConfigPath string
	ServerURL  string
	TokenFile  string
}

// AddFlags registers --config, --server and --token-file.
func (c *Connection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "config file (default $"+config.EnvConfigPath+" or the user config directory)")
	flagSet.StringVar(&c.ServerURL, "server", "", "build server base URL (overrides server_url)")
	flagSet.StringVar(&c.TokenFile, "token-file", "", "file holding the bearer token (overrides token and token_file)")
}

// load reads the config file and applies the flag overrides.
func (c *Connection) load() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if c.ConfigPath != "" {
		cfg, err = config.LoadFile(c.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	if c.ServerURL != "" {
		cfg.ServerURL = c.ServerURL
	}
	if c.TokenFile != "" {
		cfg.Token = ""
		cfg.TokenFile = c.TokenFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("invalid configuration: %w", err)
	}
	return cfg, nil
}

// client returns an API client for cfg. A token wins over a session
// cookie; with neither it connects anonymously and lets the server
// decide.
func (c *Connection) client(cfg *config.Config, logger *slog.Logger) (*buildapi.Client, error) {
	token, err := cfg.ResolveToken()
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	var credential buildapi.Credential = buildapi.Anonymous{}
	if token != "" {
		credential = buildapi.BearerToken(token)
	} else if name, value, ok := cfg.Cookie(); ok {
		credential = buildapi.SessionCookie{Name: name, Value: value}
	}
	client, err := buildapi.NewClient(buildapi.Config{
		BaseURL:    cfg.ServerURL,
		Credential: credential,
		Logger:     logger,
	})
	if err != nil {
		return nil, cli.Validation("%w", err)
	}
	return client, nil
}

// connect loads the configuration and returns it with a client.
func (c *Connection) connect(logger *slog.Logger) (*config.Config, *buildapi.Client, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, nil, err
	}
	client, err := c.client(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

// openCache opens the local result cache named by cfg.
func openCache(cfg *config.Config, logger *slog.Logger) (*buildcache.Cache, error) {
	cache, err := buildcache.Open(cfg.CacheDir, buildcache.Options{MaxEntries: cfg.CacheEntries, Logger: logger})
	if err != nil {
		return nil, cli.Internal("opening result cache: %w", err)
	}
	return cache, nil
}
