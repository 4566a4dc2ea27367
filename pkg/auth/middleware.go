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

package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Authenticator resolves bearer credentials (raw API keys, exchanged
// JWTs or the configured admin key) to claims, and exposes the
// permission middleware used by the router.
type Authenticator struct {
	keys     *KeyStore
	issuer   *TokenIssuer
	adminKey string
}

func NewAuthenticator(keys *KeyStore, issuer *TokenIssuer, adminKey string) *Authenticator {
	return &Authenticator{keys: keys, issuer: issuer, adminKey: adminKey}
}

// AdminEnabled reports whether an admin key is configured. Without one,
// key-lifecycle endpoints are disabled.
func (a *Authenticator) AdminEnabled() bool {
	return a.adminKey != ""
}

// Authenticate resolves a bearer credential to claims.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*Claims, error) {
	if credential == "" {
		return nil, ErrUnauthorized
	}

	if a.adminKey != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(a.adminKey)) == 1 {
		return &Claims{KeyID: "admin", Name: "admin", Permissions: []Permission{PermAdmin}}, nil
	}

	if strings.HasPrefix(credential, KeyPrefix) {
		return a.keys.Validate(ctx, credential)
	}
	return a.issuer.Validate(credential)
}

// BearerToken extracts the bearer credential from a request, or "".
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header {
		return ""
	}
	return token
}

// Middleware authenticates every request and rejects those whose claims
// lack the permission required by the route. The onError callback renders
// the error envelope so this package stays free of response formatting.
func (a *Authenticator) Middleware(required Permission, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return a.MiddlewareAny([]Permission{required}, onError)
}

// MiddlewareAny is Middleware with an any-of permission check, for routes
// open to more than one grant.
func (a *Authenticator) MiddlewareAny(anyOf []Permission, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := a.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				onError(w, r, err)
				return
			}
			allowed := false
			for _, p := range anyOf {
				if claims.Has(p) {
					allowed = true
					break
				}
			}
			if !allowed {
				onError(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}
