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
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix marks raw API key secrets on the wire.
const KeyPrefix = "ds_"

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Key is the stored metadata of an API key. The secret itself is never
// stored, only its hash.
type Key struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time   `json:"last_used_at,omitempty"`
}

// KeyStore manages API keys in the shared SQLite database.
type KeyStore struct {
	db *sql.DB
}

func NewKeyStore(db *sql.DB) *KeyStore {
	return &KeyStore{db: db}
}

// generateSecret returns a fresh key secret: 32 random bytes base62
// encoded under the ds_ prefix.
func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate key material: %w", err)
	}

	n := new(big.Int).SetBytes(raw)
	base := big.NewInt(int64(len(base62Alphabet)))
	var b strings.Builder
	mod := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		b.WriteByte(base62Alphabet[mod.Int64()])
	}
	// Encoded little-endian digit-first; reverse for the usual reading.
	encoded := []byte(b.String())
	for i, j := 0, len(encoded)-1; i < j; i, j = i+1, j-1 {
		encoded[i], encoded[j] = encoded[j], encoded[i]
	}
	return KeyPrefix + string(encoded), nil
}

// HashSecret returns the hex SHA-256 of a raw secret; this is the only
// form persisted.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Create mints a new key. The returned secret is shown exactly once.
func (s *KeyStore) Create(ctx context.Context, name, description string, permissions []Permission, expiresAt *time.Time) (*Key, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("key name is required")
	}
	if len(permissions) == 0 {
		permissions = []Permission{PermRead, PermSearch}
	}
	for _, p := range permissions {
		if !ValidPermission(p) {
			return nil, "", fmt.Errorf("unknown permission: %s", p)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", err
	}

	key := &Key{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Permissions: permissions,
		Active:      true,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}

	query := `INSERT INTO api_keys (id, name, description, key_hash, permissions, active, created_at, expires_at)
VALUES (?, ?, ?, ?, ?, 1, ?, ?)`
	var expires interface{}
	if expiresAt != nil {
		expires = *expiresAt
	}
	_, err = s.db.ExecContext(ctx, query, key.ID, key.Name, key.Description,
		HashSecret(secret), joinPermissions(permissions), key.CreatedAt, expires)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: api_keys.name") {
			return nil, "", fmt.Errorf("%w: %s", ErrNameTaken, name)
		}
		return nil, "", fmt.Errorf("failed to store key: %w", err)
	}
	return key, secret, nil
}

// Validate resolves a raw secret to claims. The key must exist, be active
// and unexpired. Last use is recorded best-effort.
func (s *KeyStore) Validate(ctx context.Context, secret string) (*Claims, error) {
	if !strings.HasPrefix(secret, KeyPrefix) {
		return nil, ErrInvalidToken
	}

	query := `SELECT id, name, permissions, active, expires_at FROM api_keys WHERE key_hash = ?`
	var (
		id, name, permsRaw string
		active             bool
		expiresAt          sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, HashSecret(secret)).Scan(&id, &name, &permsRaw, &active, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up key: %w", err)
	}

	if !active {
		return nil, ErrKeyRevoked
	}
	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		return nil, ErrKeyExpired
	}

	_, _ = s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now(), id)

	return &Claims{KeyID: id, Name: name, Permissions: splitPermissions(permsRaw)}, nil
}

// Get returns a key's metadata by id.
func (s *KeyStore) Get(ctx context.Context, id string) (*Key, error) {
	query := `SELECT id, name, description, permissions, active, created_at, expires_at, last_used_at
FROM api_keys WHERE id = ?`
	key, err := scanKey(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return key, err
}

// List returns all keys ordered by creation time.
func (s *KeyStore) List(ctx context.Context) ([]Key, error) {
	query := `SELECT id, name, description, permissions, active, created_at, expires_at, last_used_at
FROM api_keys ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []Key
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// Revoke deactivates a key without deleting its record.
func (s *KeyStore) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return nil
}

// Delete removes a key record entirely.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*Key, error) {
	var (
		key                 Key
		permsRaw            string
		expiresAt, lastUsed sql.NullTime
	)
	err := row.Scan(&key.ID, &key.Name, &key.Description, &permsRaw,
		&key.Active, &key.CreatedAt, &expiresAt, &lastUsed)
	if err != nil {
		return nil, err
	}
	key.Permissions = splitPermissions(permsRaw)
	if expiresAt.Valid {
		t := expiresAt.Time
		key.ExpiresAt = &t
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsedAt = &t
	}
	return &key, nil
}

func joinPermissions(perms []Permission) string {
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func splitPermissions(raw string) []Permission {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	perms := make([]Permission, 0, len(parts))
	for _, p := range parts {
		perms = append(perms, Permission(strings.TrimSpace(p)))
	}
	return perms
}
