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
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/chunk"
	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/extract"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/metrics"
	"github.com/kadirpekel/hound/pkg/model"
	"github.com/kadirpekel/hound/pkg/ratelimit"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/scheduler"
	"github.com/kadirpekel/hound/pkg/search"
	"github.com/kadirpekel/hound/pkg/storage"
	"github.com/kadirpekel/hound/pkg/vector"
)

const testAdminKey = "test-admin-secret"

type serverEnv struct {
	server    *Server
	handler   http.Handler
	keys      *auth.KeyStore
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	docsDir   string
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()

	db, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg, err := registry.New(db)
	require.NoError(t, err)

	led := ledger.New(db)

	store, err := vector.NewChromem(vector.ChromemOptions{
		PersistPath: filepath.Join(t.TempDir(), "vectors"),
		Dimension:   16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lexical := index.NewInverted()
	embedder := embedders.NewMock(16)

	chunker, err := chunk.New(chunk.Config{Size: 100, Overlap: 20})
	require.NoError(t, err)

	sched := scheduler.New(scheduler.Options{
		Config:    cfg.Indexing,
		Registry:  reg,
		Ledger:    led,
		Extractor: extract.NewService(cfg.Indexing.MaxFileSize),
		Chunker:   chunker,
		Embedder:  embedder,
		Store:     store,
		Lexical:   lexical,
	})

	engine := search.New(search.Options{
		Config:   cfg.Search,
		Lexical:  lexical,
		Store:    store,
		Embedder: embedder,
		Ledger:   led,
	})

	keys := auth.NewKeyStore(db)
	issuer, err := auth.NewTokenIssuer("test-jwt-secret", 30*time.Minute)
	require.NoError(t, err)

	srv := New(Options{
		Config:        cfg,
		Registry:      reg,
		Scheduler:     sched,
		Engine:        engine,
		Ledger:        led,
		Store:         store,
		Embedder:      embedder,
		Keys:          keys,
		Issuer:        issuer,
		Authenticator: auth.NewAuthenticator(keys, issuer, testAdminKey),
		Limiter:       ratelimit.New(cfg.RateLimit),
		Metrics:       metrics.New(),
	})

	docs := t.TempDir()
	return &serverEnv{
		server:    srv,
		handler:   srv.Handler(),
		keys:      keys,
		registry:  reg,
		scheduler: sched,
		docsDir:   docs,
	}
}

func (e *serverEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func dataMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	env := decodeEnvelope(t, rec)
	m, ok := env.Data.(map[string]any)
	require.True(t, ok, "data is not an object: %s", rec.Body.String())
	return m
}

// createKey issues an API key with the given permissions via the admin surface.
func (e *serverEnv) createKey(t *testing.T, name string, perms ...string) string {
	t.Helper()
	rec := e.request(t, http.MethodPost, "/api/v1/auth/create-key", testAdminKey, map[string]any{
		"name":        name,
		"permissions": perms,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	secret, ok := dataMap(t, rec)["api_key"].(string)
	require.True(t, ok)
	return secret
}

func (e *serverEnv) indexDocs(t *testing.T, token string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(e.docsDir, name), []byte(content), 0o644))
	}
	rec := e.request(t, http.MethodPost, "/api/v1/directories/add?path="+e.docsDir, token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.request(t, http.MethodPost, "/api/v1/directories/refresh"+e.docsDir, token, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		entry, ok := e.registry.Get(e.docsDir)
		return ok && entry.Status == model.StatusIndexed
	}, 10*time.Second, 20*time.Millisecond)
}

func TestServer_HealthAndInfoArePublic(t *testing.T) {
	env := newServerEnv(t)

	rec := env.request(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = env.request(t, http.MethodGet, "/api/info", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hound")
}

func TestServer_MissingCredentialRejected(t *testing.T) {
	env := newServerEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/directories/list", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env2 := decodeEnvelope(t, rec)
	assert.False(t, env2.Success)
	assert.Equal(t, "unauthorized", env2.Error)
}

func TestServer_KeyLifecycle(t *testing.T) {
	env := newServerEnv(t)

	secret := env.createKey(t, "ci-bot", "read", "search")
	assert.True(t, len(secret) > 3 && secret[:3] == "ds_")

	rec := env.request(t, http.MethodGet, "/api/v1/auth/list-keys", testAdminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	keys, ok := dataMap(t, rec)["keys"].([]any)
	require.True(t, ok)
	require.Len(t, keys, 1)
	keyID, _ := keys[0].(map[string]any)["id"].(string)
	require.NotEmpty(t, keyID)

	// Validate and login are public.
	rec = env.request(t, http.MethodPost, "/api/v1/auth/validate-key", "", map[string]string{"api_key": secret})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"api_key": secret})
	require.Equal(t, http.StatusOK, rec.Code)
	login := dataMap(t, rec)
	jwtToken, _ := login["access_token"].(string)
	assert.NotEmpty(t, jwtToken)
	assert.Equal(t, "bearer", login["token_type"])

	// The exchanged JWT authenticates read routes.
	rec = env.request(t, http.MethodGet, "/api/v1/directories/list", jwtToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Revoke, then the key no longer authenticates.
	rec = env.request(t, http.MethodDelete, "/api/v1/auth/revoke-key/"+keyID, testAdminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/directories/list", secret, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_PermissionGates(t *testing.T) {
	env := newServerEnv(t)
	searchOnly := env.createKey(t, "search-only", "search")

	// Directory mutation needs index permission.
	rec := env.request(t, http.MethodPost, "/api/v1/directories/add?path=/tmp", searchOnly, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin routes reject non-admin keys.
	rec = env.request(t, http.MethodGet, "/api/v1/auth/list-keys", searchOnly, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Search is allowed even without results.
	rec = env.request(t, http.MethodPost, "/api/v1/searcher/search", searchOnly, map[string]any{
		"query": "anything", "search_type": "keyword",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_DirectoryLifecycleAndSearch(t *testing.T) {
	env := newServerEnv(t)
	token := env.createKey(t, "full", "read", "search", "index")

	env.indexDocs(t, token, map[string]string{
		"a.txt": "Python is a language. Python is great.",
		"b.txt": "Java is an object-oriented idiom for enterprises.",
	})

	rec := env.request(t, http.MethodGet, "/api/v1/directories/status"+env.docsDir, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := dataMap(t, rec)
	assert.Equal(t, "indexed", status["status"])
	assert.Equal(t, float64(2), status["total_files"])

	rec = env.request(t, http.MethodPost, "/api/v1/searcher/search", token, map[string]any{
		"query":       "python",
		"search_type": "keyword",
		"limit":       10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	res := dataMap(t, rec)
	assert.Equal(t, "keyword", res["search_type"])
	results, ok := res["results"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, results)
	top, _ := results[0].(map[string]any)
	assert.Equal(t, "a.txt", top["display_name"])
	assert.Contains(t, top["snippet"], "**Python**")

	// Remove purges everything.
	rec = env.request(t, http.MethodDelete, "/api/v1/directories/remove"+env.docsDir, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/directories/status"+env.docsDir, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/searcher/search", token, map[string]any{
		"query": "python", "search_type": "keyword",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), dataMap(t, rec)["total_results"])
}

func TestServer_SearchValidation(t *testing.T) {
	env := newServerEnv(t)
	token := env.createKey(t, "searcher", "search")

	rec := env.request(t, http.MethodPost, "/api/v1/searcher/search", token, map[string]any{
		"query": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/searcher/search", token, map[string]any{
		"query": "x", "search_type": "telepathic",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_AddConflictsAndBadPaths(t *testing.T) {
	env := newServerEnv(t)
	token := env.createKey(t, "indexer", "index")

	rec := env.request(t, http.MethodPost, "/api/v1/directories/add?path="+env.docsDir, token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/directories/add?path="+env.docsDir, token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/directories/add?path=/does/not/exist", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/directories/add", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RefreshUnknownDirectory(t *testing.T) {
	env := newServerEnv(t)
	token := env.createKey(t, "indexer", "index")

	rec := env.request(t, http.MethodPost, "/api/v1/directories/refresh/no/such/dir", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StatsEndpoints(t *testing.T) {
	env := newServerEnv(t)
	token := env.createKey(t, "full", "read", "search", "index")

	env.indexDocs(t, token, map[string]string{
		"notes.txt": "Observability begins with counting things.",
	})

	rec := env.request(t, http.MethodPost, "/api/v1/searcher/search", token, map[string]any{
		"query": "counting", "search_type": "keyword",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/stats/system", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	system := dataMap(t, rec)
	assert.Equal(t, float64(1), system["total_files"])
	assert.Equal(t, float64(1), system["total_directories"])
	assert.NotEmpty(t, system["embedder_model"])

	rec = env.request(t, http.MethodGet, "/api/v1/stats/search", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	searchStats := dataMap(t, rec)
	assert.Equal(t, float64(1), searchStats["total_searches"])

	rec = env.request(t, http.MethodGet, "/api/v1/stats/directories", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), dataMap(t, rec)["total"])
}

func TestServer_RateLimitOnIndexRoutes(t *testing.T) {
	env := newServerEnv(t)

	limited := true
	cfg := config.RateLimitConfig{Enabled: &limited, GlobalPerMinute: 1000, SearchPerMinute: 1000, IndexPerMinute: 2}
	env.server.limiter = ratelimit.New(cfg)

	token := env.createKey(t, "indexer", "index")

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = env.request(t, http.MethodPost, fmt.Sprintf("/api/v1/directories/add?path=/missing-%d", i), token, nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
}

func TestServer_MetricsEndpointIsPublic(t *testing.T) {
	env := newServerEnv(t)

	rec := env.request(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
