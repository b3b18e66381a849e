// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command buildconsole-server serves the /api/build endpoints: build
// configuration, history, statistics, and builds streamed over
// Server-Sent Events or WebSocket.
//
// Configuration comes from BUILDCONSOLE_* environment variables,
// overridden by flags. "buildconsole-server mint-token" prints a
// bearer token for an operator.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildconsole/lib/buildserver"
	"github.com/bureau-foundation/buildconsole/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Environ(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args, environ []string, stdout io.Writer) error {
	cfg, err := parseEnvironment(environ)
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "mint-token" {
		return mintToken(cfg, args[1:], stdout)
	}

	flagSet := pflag.NewFlagSet("buildconsole-server", pflag.ContinueOnError)
	cfg.addFlags(flagSet)
	showVersion := flagSet.Bool("version", false, "print version information and exit")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "buildconsole-server %s\n", version.Info())
		return nil
	}
	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	secret, err := cfg.secret()
	if err != nil {
		return err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	runner := cfg.runner()
	runner.Logger = logger
	server, err := buildserver.New(buildserver.Config{
		Store:             store,
		Runner:            runner,
		Secret:            secret,
		HeartbeatInterval: cfg.Heartbeat,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.ListenAddress, err)
	}
	logger.Info("buildconsole-server starting",
		"version", version.Info(),
		"history", cfg.History,
		"workdir", cfg.WorkDir,
		"build_command", cfg.BuildCommand,
	)
	return server.Serve(ctx, listener)
}

// openStore connects the configured history backend.
func openStore(ctx context.Context, cfg *serverConfig, logger *slog.Logger) (buildserver.Store, func(), error) {
	if cfg.History == historyFile {
		logger.Info("build history in file", "path", cfg.HistoryPath)
		return buildserver.NewFileStore(cfg.HistoryPath), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Redis.Address, err)
	}
	logger.Info("build history in redis", "address", cfg.Redis.Address, "prefix", cfg.Redis.Prefix)
	return buildserver.NewRedisStore(client, cfg.Redis.Prefix), func() { client.Close() }, nil
}

// mintToken prints a signed bearer token.
func mintToken(cfg *serverConfig, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("mint-token", pflag.ContinueOnError)
	flagSet.StringVar(&cfg.SecretFile, "jwt-secret-file", cfg.SecretFile, "file holding the token signing secret")
	subject := flagSet.String("subject", "", "who the token identifies, e.g. an email address (required)")
	role := flagSet.String("role", "admin", "role claim: admin or super_admin")
	ttl := flagSet.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *subject == "" {
		return errors.New("--subject is required")
	}
	if *ttl <= 0 {
		return errors.New("--ttl must be positive")
	}
	secret, err := cfg.secret()
	if err != nil {
		return err
	}
	token, err := buildserver.MintToken(secret, *subject, *role, *ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
