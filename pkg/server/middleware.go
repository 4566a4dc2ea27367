// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/ratelimit"
)

const requestIDHeader = "X-Request-ID"

// responseWriter captures the status code for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", elapsed.Milliseconds(),
			"request_id", w.Header().Get(requestIDHeader))

		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, routePattern(r), wrapped.statusCode, elapsed)
		}
	})
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler", "panic", rec, "path", r.URL.Path)
				writeJSON(w, http.StatusInternalServerError,
					envelope{Success: false, Message: "internal server error", Error: "internal"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// routePattern returns chi's matched pattern so metrics stay low-cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

// rateLimitMiddleware enforces the class bucket plus the global bucket,
// keyed by api key id when authenticated and client IP otherwise.
func (s *Server) rateLimitMiddleware(class ratelimit.Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientID(r)

			ok, wait := s.limiter.Allow(client, ratelimit.ClassGlobal)
			if ok && class != ratelimit.ClassGlobal {
				ok, wait = s.limiter.Allow(client, class)
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(ratelimit.RetryAfterSeconds(wait)))
				writeJSON(w, http.StatusTooManyRequests,
					envelope{Success: false, Message: "rate limit exceeded", Error: "rate_limited"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientID(r *http.Request) string {
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		return claims.KeyID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authMiddleware wires the authenticator's permission gate into the
// envelope error shape.
func (s *Server) authMiddleware(required auth.Permission) func(http.Handler) http.Handler {
	return s.authenticator.Middleware(required, func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, err)
	})
}

// authMiddlewareAny admits a request holding any of the given permissions.
func (s *Server) authMiddlewareAny(anyOf ...auth.Permission) func(http.Handler) http.Handler {
	return s.authenticator.MiddlewareAny(anyOf, func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, err)
	})
}
