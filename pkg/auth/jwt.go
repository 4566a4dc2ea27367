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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	jwtIssuer        = "hound"
	permissionsClaim = "permissions"
	keyNameClaim     = "key_name"
)

// TokenIssuer signs and validates short-lived HS256 tokens exchanged for
// API keys at /auth/login.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. With an empty secret a random one is
// generated, which invalidates outstanding tokens on restart.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	raw := []byte(secret)
	if len(raw) == 0 {
		raw = make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		raw = []byte(hex.EncodeToString(raw))
		slog.Warn("no jwt secret configured, tokens will not survive restarts")
	}
	return &TokenIssuer{secret: raw, ttl: ttl}, nil
}

// Issue builds a signed token carrying the key id and permissions.
func (i *TokenIssuer) Issue(claims *Claims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(i.ttl)

	perms := make([]string, len(claims.Permissions))
	for idx, p := range claims.Permissions {
		perms[idx] = string(p)
	}

	token, err := jwt.NewBuilder().
		Issuer(jwtIssuer).
		Subject(claims.KeyID).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(keyNameClaim, claims.Name).
		Claim(permissionsClaim, perms).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, i.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), expiresAt, nil
}

// Validate parses and verifies a token and rebuilds the claims.
func (i *TokenIssuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256, i.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(jwtIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	claims := &Claims{KeyID: token.Subject()}
	if name, ok := token.Get(keyNameClaim); ok {
		if s, ok := name.(string); ok {
			claims.Name = s
		}
	}
	if raw, ok := token.Get(permissionsClaim); ok {
		if list, ok := raw.([]interface{}); ok {
			for _, item := range list {
				if s, ok := item.(string); ok {
					claims.Permissions = append(claims.Permissions, Permission(s))
				}
			}
		}
	}
	return claims, nil
}
