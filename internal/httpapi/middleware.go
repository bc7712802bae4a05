// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fellowhub/fellowhub/internal/auth"
)

type accessTokenKey struct{}

// accessToken returns the credential the caller presented. The cookie wins
// over the Authorization header.
func accessToken(r *http.Request) string {
	if v := cookieValue(r, AccessCookie); v != "" {
		return v
	}
	header := r.Header.Get("Authorization")
	if scheme, tok, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(tok)
	}
	return ""
}

// RequireAuth rejects requests without a valid access token and stores the
// caller's auth.Identity in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := accessToken(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		identity, err := h.svc.ValidateSession(r.Context(), tok)
		if err != nil {
			h.writeServiceError(w, r, "validate_session", err)
			return
		}
		ctx := auth.WithIdentity(r.Context(), identity)
		ctx = context.WithValue(ctx, accessTokenKey{}, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only callers whose current role is one of roles. It
// must run after RequireAuth.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !identity.HasRole(roles...) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
					panic(rec)
				}
				h.logger.ErrorContext(r.Context(), "panic recovered",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// observe logs each request and records route metrics.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)

		if h.metrics != nil {
			h.metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
			h.metrics.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		}

		level := slogLevelFor(status)
		h.logger.Log(r.Context(), level, "http request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds())
	})
}

func slogLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
