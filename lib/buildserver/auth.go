// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AllowedRoles may use the build endpoints.
var AllowedRoles = []string{"admin", "super_admin"}

// tokenIssuer is the iss claim of minted tokens.
const tokenIssuer = "buildconsole"

// Claims is the JWT payload the server accepts.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// MintToken signs a token for subject with role, valid for ttl from
// now.
func MintToken(secret []byte, subject, role string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("buildserver: signing secret is empty")
	}
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("buildserver: signing token: %w", err)
	}
	return signed, nil
}

// parseToken verifies signature, algorithm, and time claims.
func parseToken(secret []byte, raw string, now func() time.Time) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

type claimsKey struct{}

// ClaimsFromContext returns the verified claims of the request, if
// any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok
}

// bearerToken extracts the token from an Authorization header. The
// WebSocket endpoint also accepts it as the access_token query
// parameter, since browsers cannot set headers on upgrade requests.
func bearerToken(request *http.Request) string {
	scheme, token, found := strings.Cut(request.Header.Get("Authorization"), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return request.URL.Query().Get("access_token")
}

// requireRole rejects requests without a valid token (401) or with a
// role outside AllowedRoles (403).
func (server *Server) requireRole(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		raw := bearerToken(request)
		if raw == "" {
			writeError(writer, http.StatusUnauthorized, "Authentication required")
			return
		}
		claims, err := parseToken(server.secret, raw, server.clock.Now)
		if err != nil {
			server.logger.Debug("rejecting token", "error", err, "path", request.URL.Path)
			writeError(writer, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if !slices.Contains(AllowedRoles, claims.Role) {
			writeError(writer, http.StatusForbidden, "Insufficient permissions")
			return
		}
		next.ServeHTTP(writer, request.WithContext(context.WithValue(request.Context(), claimsKey{}, claims)))
	})
}
