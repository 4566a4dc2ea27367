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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hound/pkg/storage"
)

func newTestKeyStore(t *testing.T) *KeyStore {
	t.Helper()
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewKeyStore(db)
}

func TestKeyStore_CreateAndValidate(t *testing.T) {
	s := newTestKeyStore(t)
	ctx := context.Background()

	key, secret, err := s.Create(ctx, "ci", "ci pipeline key", []Permission{PermSearch, PermRead}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, key.ID)
	assert.True(t, strings.HasPrefix(secret, KeyPrefix))
	assert.True(t, key.Active)

	claims, err := s.Validate(ctx, secret)
	require.NoError(t, err)
	assert.Equal(t, key.ID, claims.KeyID)
	assert.Equal(t, "ci", claims.Name)
	assert.True(t, claims.Has(PermSearch))
	assert.False(t, claims.Has(PermAdmin))
}

func TestKeyStore_NameTaken(t *testing.T) {
	s := newTestKeyStore(t)
	ctx := context.Background()

	_, _, err := s.Create(ctx, "dup", "", nil, nil)
	require.NoError(t, err)
	_, _, err = s.Create(ctx, "dup", "", nil, nil)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestKeyStore_ValidateRejections(t *testing.T) {
	s := newTestKeyStore(t)
	ctx := context.Background()

	_, err := s.Validate(ctx, "not-a-key")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Validate(ctx, KeyPrefix+"unknownsecret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Revoked key.
	key, secret, err := s.Create(ctx, "revoked", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Revoke(ctx, key.ID))
	_, err = s.Validate(ctx, secret)
	assert.ErrorIs(t, err, ErrKeyRevoked)

	// Expired key.
	past := time.Now().Add(-time.Hour)
	_, expiredSecret, err := s.Create(ctx, "expired", "", nil, &past)
	require.NoError(t, err)
	_, err = s.Validate(ctx, expiredSecret)
	assert.ErrorIs(t, err, ErrKeyExpired)
}

func TestKeyStore_ListAndDelete(t *testing.T) {
	s := newTestKeyStore(t)
	ctx := context.Background()

	k1, _, err := s.Create(ctx, "one", "", []Permission{PermRead}, nil)
	require.NoError(t, err)
	_, _, err = s.Create(ctx, "two", "", []Permission{PermAdmin}, nil)
	require.NoError(t, err)

	keys, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	require.NoError(t, s.Delete(ctx, k1.ID))
	keys, err = s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	assert.ErrorIs(t, s.Delete(ctx, k1.ID), ErrKeyNotFound)
	assert.ErrorIs(t, s.Revoke(ctx, "missing"), ErrKeyNotFound)
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", 30*time.Minute)
	require.NoError(t, err)

	in := &Claims{KeyID: "key-1", Name: "ci", Permissions: []Permission{PermSearch, PermIndex}}
	token, expiresAt, err := issuer.Issue(in)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), expiresAt, 5*time.Second)

	out, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "key-1", out.KeyID)
	assert.Equal(t, "ci", out.Name)
	assert.Equal(t, in.Permissions, out.Permissions)
}

func TestTokenIssuer_RejectsForeignSignature(t *testing.T) {
	a, err := NewTokenIssuer("secret-a", time.Minute)
	require.NoError(t, err)
	b, err := NewTokenIssuer("secret-b", time.Minute)
	require.NoError(t, err)

	token, _, err := a.Issue(&Claims{KeyID: "k"})
	require.NoError(t, err)

	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_RejectsExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("secret", time.Nanosecond)
	require.NoError(t, err)

	token, _, err := issuer.Issue(&Claims{KeyID: "k"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = issuer.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func newTestAuthenticator(t *testing.T, adminKey string) (*Authenticator, string) {
	t.Helper()
	keys := newTestKeyStore(t)
	issuer, err := NewTokenIssuer("test-secret", time.Minute)
	require.NoError(t, err)

	_, secret, err := keys.Create(context.Background(), "tester", "", []Permission{PermSearch}, nil)
	require.NoError(t, err)

	return NewAuthenticator(keys, issuer, adminKey), secret
}

func TestAuthenticator_Middleware(t *testing.T) {
	a, secret := newTestAuthenticator(t, "super-admin")

	var gotStatus int
	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		switch err {
		case ErrForbidden:
			gotStatus = http.StatusForbidden
		default:
			gotStatus = http.StatusUnauthorized
		}
		w.WriteHeader(gotStatus)
	}

	handler := a.Middleware(PermSearch, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		require.NotNil(t, claims)
		w.WriteHeader(http.StatusOK)
	}))

	// Valid key.
	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing credential.
	req = httptest.NewRequest(http.MethodGet, "/search", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Admin key passes any permission gate.
	req = httptest.NewRequest(http.MethodGet, "/search", nil)
	req.Header.Set("Authorization", "Bearer super-admin")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticator_PermissionDenied(t *testing.T) {
	a, secret := newTestAuthenticator(t, "")

	onError := func(w http.ResponseWriter, r *http.Request, err error) {
		if err == ErrForbidden {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}

	// The key only carries search; index must be refused.
	handler := a.Middleware(PermIndex, onError)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/directories", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateSecret_Format(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		secret, err := generateSecret()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(secret, KeyPrefix))
		for _, r := range secret[len(KeyPrefix):] {
			assert.Contains(t, base62Alphabet, string(r))
		}
		_, dup := seen[secret]
		assert.False(t, dup)
		seen[secret] = struct{}{}
	}
}
