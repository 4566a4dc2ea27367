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

// Package auth provides API key management, JWT exchange and the
// permission model guarding the HTTP surface.
package auth

import (
	"context"
	"errors"
)

// Common authentication errors.
var (
	ErrUnauthorized = errors.New("unauthorized: authentication required")
	ErrForbidden    = errors.New("forbidden: insufficient permissions")
	ErrInvalidToken = errors.New("invalid token")
	ErrKeyRevoked   = errors.New("key revoked")
	ErrKeyExpired   = errors.New("key expired")
	ErrNameTaken    = errors.New("key name already taken")
	ErrKeyNotFound  = errors.New("key not found")
)

// Permission is one grant carried by an API key.
type Permission string

const (
	PermRead   Permission = "read"
	PermSearch Permission = "search"
	PermIndex  Permission = "index"
	PermAdmin  Permission = "admin"
)

// AllPermissions in canonical order.
var AllPermissions = []Permission{PermRead, PermSearch, PermIndex, PermAdmin}

// ValidPermission reports whether p is a known permission.
func ValidPermission(p Permission) bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// Claims is the authenticated identity attached to a request, whether it
// came from a raw key or an exchanged JWT.
type Claims struct {
	KeyID       string       `json:"key_id"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// Has reports whether the claims carry a permission. Admin implies
// everything.
func (c *Claims) Has(p Permission) bool {
	for _, have := range c.Permissions {
		if have == p || have == PermAdmin {
			return true
		}
	}
	return false
}

type contextKey string

const claimsContextKey contextKey = "hound_auth_claims"

// ContextWithClaims returns a new context carrying the claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts claims from a context, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}
