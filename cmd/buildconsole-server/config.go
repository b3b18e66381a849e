// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildconsole/lib/buildserver"
)

// History backends.
const (
	historyFile  = "file"
	historyRedis = "redis"
)

// serverConfig is read from BUILDCONSOLE_* environment variables and
// then overridden by command-line flags.
type serverConfig struct {
	ListenAddress  string        `env:"LISTEN" envDefault:"127.0.0.1:3000"`
	Secret         string        `env:"JWT_SECRET"`
	SecretFile     string        `env:"JWT_SECRET_FILE"`
	WorkDir        string        `env:"WORKDIR"`
	BuildCommand   string        `env:"BUILD_COMMAND" envDefault:"npm run build"`
	InstallCommand string        `env:"INSTALL_COMMAND" envDefault:"npm install"`
	Heartbeat      time.Duration `env:"HEARTBEAT" envDefault:"15s"`
	History        string        `env:"HISTORY" envDefault:"file"`
	HistoryPath    string        `env:"HISTORY_PATH" envDefault:"build-history.json"`
	Redis          redisConfig   `envPrefix:"REDIS_"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
}

type redisConfig struct {
	Address  string `env:"ADDRESS" envDefault:"127.0.0.1:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	Prefix   string `env:"PREFIX" envDefault:"buildconsole"`
}

// envPrefix namespaces every environment variable.
const envPrefix = "BUILDCONSOLE_"

// parseEnvironment reads the configuration from environ, a list of
// KEY=value pairs as returned by os.Environ.
func parseEnvironment(environ []string) (*serverConfig, error) {
	var cfg serverConfig
	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
		Prefix:      envPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// addFlags binds flags whose defaults are the values already in cfg.
func (cfg *serverConfig) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&cfg.ListenAddress, "listen", cfg.ListenAddress, "address to serve HTTP on")
	flagSet.StringVar(&cfg.SecretFile, "jwt-secret-file", cfg.SecretFile, "file holding the token signing secret (or set "+envPrefix+"JWT_SECRET)")
	flagSet.StringVar(&cfg.WorkDir, "workdir", cfg.WorkDir, "project directory builds run in (default: current directory)")
	flagSet.StringVar(&cfg.BuildCommand, "build-command", cfg.BuildCommand, "shell command that performs the build")
	flagSet.StringVar(&cfg.InstallCommand, "install-command", cfg.InstallCommand, "shell command prefix that installs a package")
	flagSet.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "interval between heartbeat events on open streams")
	flagSet.StringVar(&cfg.History, "history", cfg.History, "history backend: file or redis")
	flagSet.StringVar(&cfg.HistoryPath, "history-path", cfg.HistoryPath, "history file for the file backend")
	flagSet.StringVar(&cfg.Redis.Address, "redis-address", cfg.Redis.Address, "Redis address for the redis backend")
	flagSet.IntVar(&cfg.Redis.DB, "redis-db", cfg.Redis.DB, "Redis database number")
	flagSet.StringVar(&cfg.Redis.Prefix, "redis-prefix", cfg.Redis.Prefix, "key prefix in Redis")
	flagSet.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, or error")
}

// secret returns the signing secret, reading SecretFile when Secret is
// unset.
func (cfg *serverConfig) secret() ([]byte, error) {
	if cfg.Secret != "" {
		return []byte(cfg.Secret), nil
	}
	if cfg.SecretFile == "" {
		return nil, fmt.Errorf("a signing secret is required: set %sJWT_SECRET or --jwt-secret-file", envPrefix)
	}
	data, err := os.ReadFile(cfg.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("reading signing secret: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return nil, fmt.Errorf("signing secret file %s is empty", cfg.SecretFile)
	}
	return []byte(secret), nil
}

func (cfg *serverConfig) validate() error {
	var errs []error
	if cfg.ListenAddress == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if strings.TrimSpace(cfg.BuildCommand) == "" {
		errs = append(errs, errors.New("build command is required"))
	}
	if cfg.Heartbeat <= 0 {
		errs = append(errs, errors.New("heartbeat interval must be positive"))
	}
	switch cfg.History {
	case historyFile:
		if cfg.HistoryPath == "" {
			errs = append(errs, errors.New("history path is required for the file backend"))
		}
	case historyRedis:
		if cfg.Redis.Address == "" {
			errs = append(errs, errors.New("redis address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history backend %q (want %s or %s)", cfg.History, historyFile, historyRedis))
	}
	return errors.Join(errs...)
}

// runner returns the build runner the configuration describes.
func (cfg *serverConfig) runner() *buildserver.Runner {
	return &buildserver.Runner{
		BuildCommand:   cfg.BuildCommand,
		InstallCommand: cfg.InstallCommand,
		WorkDir:        cfg.WorkDir,
	}
}
