// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/buildconsole/lib/buildserver"
)

func TestParseEnvironmentDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := parseEnvironment(nil)
	if err != nil {
		t.Fatalf("parseEnvironment: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:3000" || cfg.BuildCommand != buildserver.DefaultBuildCommand {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Heartbeat != 15*time.Second || cfg.History != historyFile || cfg.Redis.Prefix != buildserver.DefaultRedisPrefix {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("validate defaults: %v", err)
	}
}

func TestParseEnvironmentAndFlagOverrides(t *testing.T) {
	t.Parallel()
	cfg, err := parseEnvironment([]string{
		"BUILDCONSOLE_LISTEN=:8080",
		"BUILDCONSOLE_HISTORY=redis",
		"BUILDCONSOLE_REDIS_ADDRESS=redis:6379",
		"BUILDCONSOLE_REDIS_DB=3",
		"BUILDCONSOLE_HEARTBEAT=5s",
		"UNRELATED=1",
	})
	if err != nil {
		t.Fatalf("parseEnvironment: %v", err)
	}
	if cfg.ListenAddress != ":8080" || cfg.History != historyRedis || cfg.Redis.Address != "redis:6379" || cfg.Redis.DB != 3 {
		t.Errorf("environment not applied: %+v", cfg)
	}

	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.addFlags(flagSet)
	if err := flagSet.Parse([]string{"--listen", "0.0.0.0:9000", "--history", "file"}); err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddress != "0.0.0.0:9000" || cfg.History != historyFile {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Heartbeat != 5*time.Second {
		t.Errorf("unset flag overwrote environment: heartbeat %v", cfg.Heartbeat)
	}
}

func TestParseEnvironmentRejectsBadValues(t *testing.T) {
	t.Parallel()
	if _, err := parseEnvironment([]string{"BUILDCONSOLE_HEARTBEAT=often"}); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()
	cfg := serverConfig{History: "s3", BuildCommand: " "}
	err := cfg.validate()
	if err == nil {
		t.Fatal("validate accepted broken config")
	}
	for _, fragment := range []string{"listen address", "build command", "heartbeat", `unknown history backend "s3"`} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error %q missing %q", err, fragment)
		}
	}
}

func TestSecretFromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := serverConfig{SecretFile: path}
	secret, err := cfg.secret()
	if err != nil || string(secret) != "s3cret" {
		t.Errorf("secret() = %q, %v", secret, err)
	}

	if _, err := (&serverConfig{}).secret(); err == nil {
		t.Error("missing secret accepted")
	}
}

func TestMintTokenCommand(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	environ := []string{"BUILDCONSOLE_JWT_SECRET=mint-secret"}
	if err := run([]string{"mint-token", "--subject", "ops@example.com", "--role", "super_admin", "--ttl", "1h"}, environ, &stdout); err != nil {
		t.Fatalf("mint-token: %v", err)
	}

	raw := strings.TrimSpace(stdout.String())
	claims := &buildserver.Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return []byte("mint-secret"), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		t.Fatalf("parsing minted token: %v", err)
	}
	if claims.Subject != "ops@example.com" || claims.Role != "super_admin" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestMintTokenRequiresSubject(t *testing.T) {
	t.Parallel()
	err := run([]string{"mint-token"}, []string{"BUILDCONSOLE_JWT_SECRET=x"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "--subject") {
		t.Errorf("err = %v", err)
	}
}

func TestVersionFlag(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	if err := run([]string{"--version"}, nil, &stdout); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "buildconsole-server ") {
		t.Errorf("stdout = %q", stdout.String())
	}
}
