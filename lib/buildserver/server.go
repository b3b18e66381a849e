// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/buildconsole/lib/clock"
	"github.com/bureau-foundation/buildconsole/lib/schema/build"
)

// Defaults for Config.
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// LogsLimit is how many records GET /logs returns.
const LogsLimit = 50

// Config configures a Server.
type Config struct {
	// Store holds the history. Required.
	Store Store

	// Runner executes builds. Required.
	Runner *Runner

	// Secret verifies bearer tokens. Required.
	Secret []byte

	// BuildConfig is the initial build configuration. Defaults to
	// build.DefaultConfig().
	BuildConfig *build.Config

	// HeartbeatInterval separates heartbeat events on open streams.
	// Defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// ShutdownTimeout bounds the drain in Serve. Defaults to
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger
}

// Server implements the /api/build endpoints.
type Server struct {
	store           Store
	runner          *Runner
	secret          []byte
	heartbeat       time.Duration
	shutdownTimeout time.Duration
	clock           clock.Clock
	logger          *slog.Logger
	upgrader        websocket.Upgrader

	configMu sync.Mutex
	config   build.Config

	// building is held for the duration of a build; only one runs
	// at a time.
	building sync.Mutex
}

// New validates config and returns a Server.
func New(config Config) (*Server, error) {
	if config.Store == nil {
		return nil, errors.New("buildserver: Store is required")
	}
	if config.Runner == nil {
		return nil, errors.New("buildserver: Runner is required")
	}
	if len(config.Secret) == 0 {
		return nil, errors.New("buildserver: Secret is required")
	}
	buildConfig := build.DefaultConfig()
	if config.BuildConfig != nil {
		if err := config.BuildConfig.Validate(); err != nil {
			return nil, fmt.Errorf("buildserver: initial build config: %w", err)
		}
		buildConfig = *config.BuildConfig
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		store:           config.Store,
		runner:          config.Runner,
		secret:          config.Secret,
		heartbeat:       config.HeartbeatInterval,
		shutdownTimeout: config.ShutdownTimeout,
		clock:           config.Clock,
		logger:          config.Logger,
		config:          buildConfig,
		upgrader: websocket.Upgrader{
			// Tokens, not cookies, authenticate the upgrade, so a
			// cross-origin page gains nothing.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}, nil
}

// Handler returns the routed endpoints.
func (server *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(server.logRequests)

	router.Get("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api/build", func(router chi.Router) {
		router.Use(server.requireRole)
		router.Get("/config", server.getConfig)
		router.With(limitBody).Post("/config", server.postConfig)
		router.Get("/logs", server.getLogs)
		router.Get("/meta", server.getMeta)
		router.Delete("/history", server.clearHistory)
		router.Delete("/history/{buildId}", server.deleteBuild)
		router.Post("/run", server.run)
		router.Get("/run-stream", server.runStream)
		router.Get("/ws", server.runWebSocket)
	})
	return router
}

// Serve accepts connections on listener until ctx is cancelled, then
// drains in-flight requests for up to the shutdown timeout. Open
// build streams end when their request contexts are cancelled.
func (server *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler: server.Handler(),

		// No write timeout: streams stay open for a whole build.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	server.logger.Info("build server listening", "address", listener.Addr().String())

	serveDone := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
		server.logger.Info("build server shutting down")
	case err := <-serveDone:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("build server shutdown: %w", err)
	}
	server.logger.Info("build server stopped")
	return nil
}

// currentConfig returns a copy of the stored build configuration.
func (server *Server) currentConfig() build.Config {
	server.configMu.Lock()
	defer server.configMu.Unlock()
	return server.config
}

// triggeredBy names the caller for the history record.
func triggeredBy(request *http.Request) string {
	if claims, ok := ClaimsFromContext(request.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}

// logRequests logs one line per request after it completes.
func (server *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		start := server.clock.Now()
		wrapped := middleware.NewWrapResponseWriter(writer, request.ProtoMajor)
		next.ServeHTTP(wrapped, request)
		server.logger.Debug("request",
			"method", request.Method,
			"path", request.URL.Path,
			"status", wrapped.Status(),
			"duration", server.clock.Now().Sub(start).String(),
		)
	})
}

const maxRequestBodySize = 1 << 20

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		request.Body = http.MaxBytesReader(writer, request.Body, maxRequestBodySize)
		next.ServeHTTP(writer, request)
	})
}
