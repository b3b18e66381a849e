// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the
// default config file location.
const EnvConfigPath = "BUILDCONSOLE_CONFIG"

// Transport names a streaming transport.
type Transport string

const (
	// TransportSSE streams over Server-Sent Events.
	TransportSSE Transport = "sse"
	// TransportWebSocket streams over a WebSocket.
	TransportWebSocket Transport = "ws"
)

// Config is the console client's configuration.
type Config struct {
	// ServerURL is the build server's base URL, without the /api/build
	// suffix.
	ServerURL string `yaml:"server_url"`

	// Token is the bearer token sent with every request. Prefer
	// TokenFile or ${VAR} expansion over a literal value.
	Token string `yaml:"token"`

	// TokenFile is read when Token is empty. Surrounding whitespace is
	// trimmed.
	TokenFile string `yaml:"token_file"`

	// SessionCookie is a "name=value" cookie sent when no token is
	// configured, for servers behind a browser-session login.
	SessionCookie string `yaml:"session_cookie"`

	// Transport is "sse" (default) or "ws".
	Transport Transport `yaml:"transport"`

	// ConnectTimeout bounds the wait for the first stream frame, as a
	// Go duration string. Default: 10s
	ConnectTimeout string `yaml:"connect_timeout"`

	// CacheDir holds the local cache of finished runs.
	// Default: $XDG_CACHE_HOME/buildconsole
	CacheDir string `yaml:"cache_dir"`

	// CacheEntries is how many finished runs the cache keeps.
	// Default: 20
	CacheEntries int `yaml:"cache_entries"`
}

// Default returns the configuration used when no file exists, and the
// base that a loaded file overlays.
func Default() *Config {
	cacheRoot, err := os.UserCacheDir()
	if err != nil {
		cacheRoot = filepath.Join(os.TempDir(), "cache")
	}
	return &Config{
		ServerURL:      "http://localhost:3000",
		Transport:      TransportSSE,
		ConnectTimeout: "10s",
		CacheDir:       filepath.Join(cacheRoot, "buildconsole"),
		CacheEntries:   20,
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/buildconsole/config.yaml, or
// the platform equivalent.
func DefaultPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(root, "buildconsole", "config.yaml"), nil
}

// Load reads the file named by BUILDCONSOLE_CONFIG, or DefaultPath when
// the variable is unset. A missing default file yields Default(); a
// missing file named explicitly is an error.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFile(path)
	}
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return cfg, err
}

// LoadFile reads a YAML config file over Default(). Unknown keys are
// rejected. ${VAR} and ${VAR:-default} are expanded in every string
// field after parsing.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.ServerURL = expandVars(c.ServerURL)
	c.Token = expandVars(c.Token)
	c.TokenFile = expandVars(c.TokenFile)
	c.SessionCookie = expandVars(c.SessionCookie)
	c.Transport = Transport(expandVars(string(c.Transport)))
	c.ConnectTimeout = expandVars(c.ConnectTimeout)
	c.CacheDir = expandVars(c.CacheDir)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} with the environment value and
// ${VAR:-default} with the default when VAR is unset or empty.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Timeout parses ConnectTimeout. An empty value means the stream
// client's default.
func (c *Config) Timeout() (time.Duration, error) {
	if c.ConnectTimeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 0, fmt.Errorf("connect_timeout: %w", err)
	}
	return timeout, nil
}

// ResolveToken returns Token, or the trimmed contents of TokenFile when
// Token is empty. An empty result is not an error; the server decides
// whether anonymous access is allowed.
func (c *Config) ResolveToken() (string, error) {
	if c.Token != "" || c.TokenFile == "" {
		return c.Token, nil
	}
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token_file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Cookie splits SessionCookie into its name and value. ok is false
// when no cookie is configured.
func (c *Config) Cookie() (name, value string, ok bool) {
	if c.SessionCookie == "" {
		return "", "", false
	}
	name, value, found := strings.Cut(c.SessionCookie, "=")
	if !found || strings.TrimSpace(name) == "" {
		return "", "", false
	}
	return strings.TrimSpace(name), value, true
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url is required"))
	} else if parsed, err := url.Parse(c.ServerURL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("server_url must be an http or https URL, got %q", c.ServerURL))
	}

	if c.SessionCookie != "" {
		if _, _, ok := c.Cookie(); !ok {
			errs = append(errs, errors.New("session_cookie must have the form name=value"))
		}
	}

	if c.Transport != TransportSSE && c.Transport != TransportWebSocket {
		errs = append(errs, fmt.Errorf("transport must be one of: %s, %s", TransportSSE, TransportWebSocket))
	}

	if timeout, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	} else if timeout < 0 {
		errs = append(errs, errors.New("connect_timeout must not be negative"))
	}

	if c.CacheEntries < 0 {
		errs = append(errs, errors.New("cache_entries must not be negative"))
	}

	return errors.Join(errs...)
}
