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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	hound "github.com/kadirpekel/hound"
	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/search"
)

func registryNotFound(path string) error {
	return fmt.Errorf("%w: %s", registry.ErrNotRegistered, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := hound.GetVersion()
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "hound",
		"version": info.Version,
		"docs":    "https://github.com/kadirpekel/hound",
	})
}

// ---------------------------------------------------------------------------
// Auth

type createKeyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ExpiresDays int      `json:"expires_days,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	if !s.authenticator.AdminEnabled() {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "key management is disabled", Error: "not_found"})
		return
	}
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	perms := make([]auth.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, auth.Permission(p))
	}
	var expiresAt *time.Time
	if req.ExpiresDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresDays)
		expiresAt = &t
	}

	key, secret, err := s.keys.Create(r.Context(), req.Name, req.Description, perms, expiresAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "api key created, store it now: it is not shown again", map[string]any{
		"api_key":  secret,
		"key_info": key,
	})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	if !s.authenticator.AdminEnabled() {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "key management is disabled", Error: "not_found"})
		return
	}
	keys, err := s.keys.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"keys": keys, "total": len(keys)})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request) {
	if !s.authenticator.AdminEnabled() {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Message: "key management is disabled", Error: "not_found"})
		return
	}
	if err := s.keys.Revoke(r.Context(), chi.URLParam(r, "keyID")); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"ok": true})
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleValidateKey(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		badRequest(w, "api_key is required")
		return
	}
	claims, err := s.keys.Validate(r.Context(), req.APIKey)
	if err != nil {
		writeError(w, err)
		return
	}
	key, err := s.keys.Get(r.Context(), claims.KeyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"key_info": key})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.APIKey == "" {
		badRequest(w, "api_key is required")
		return
	}
	claims, err := s.keys.Validate(r.Context(), req.APIKey)
	if err != nil {
		writeError(w, err)
		return
	}
	token, expiresAt, err := s.issuer.Issue(claims)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(time.Until(expiresAt).Seconds()),
	})
}

// ---------------------------------------------------------------------------
// Directories

// wildcardPath rebuilds the absolute directory path from a wildcard route
// segment: /api/v1/directories/status/tmp/docs → /tmp/docs.
func wildcardPath(r *http.Request) string {
	return "/" + chi.URLParam(r, "*")
}

func (s *Server) handleDirectoryAdd(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		badRequest(w, "path query parameter is required")
		return
	}
	entry, err := s.registry.Add(r.Context(), path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "directory registered", map[string]any{"directory": entry})
}

func (s *Server) handleDirectoryList(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	writeData(w, http.StatusOK, map[string]any{"directories": entries, "total": len(entries)})
}

func (s *Server) handleDirectoryStatus(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	entry, ok := s.registry.Get(path)
	if !ok {
		writeError(w, registryNotFound(path))
		return
	}
	payload := map[string]any{
		"path":          entry.Path,
		"status":        entry.Status,
		"progress":      entry.Progress,
		"total_files":   entry.TotalFiles,
		"indexed_files": entry.IndexedFiles,
	}
	if entry.LastTaskID != "" {
		payload["task_id"] = entry.LastTaskID
		if task, ok := s.scheduler.Task(entry.LastTaskID); ok {
			payload["task_state"] = task.State
			payload["stats"] = task.Stats
		}
	}
	if entry.LastError != "" {
		payload["message"] = entry.LastError
	}
	if entry.LastIndexedAt != nil {
		payload["last_indexed_at"] = entry.LastIndexedAt
	}
	writeData(w, http.StatusOK, payload)
}

func (s *Server) handleDirectoryRefresh(w http.ResponseWriter, r *http.Request) {
	task, err := s.scheduler.Refresh(wildcardPath(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusAccepted, "refresh scheduled", map[string]any{
		"task_id": task.ID,
		"state":   task.State,
	})
}

func (s *Server) handleDirectoryRemove(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if _, ok := s.registry.Get(path); !ok {
		writeError(w, registryNotFound(path))
		return
	}
	s.scheduler.CancelDirectory(path)
	if err := s.scheduler.Purge(r.Context(), path); err != nil {
		writeError(w, err)
		return
	}
	if err := s.registry.Remove(r.Context(), path); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "directory removed", map[string]any{"path": path})
}

// ---------------------------------------------------------------------------
// Search

// searchRequest carries Threshold as a pointer so an explicit zero is
// distinguishable from an omitted field.
type searchRequest struct {
	Query      string   `json:"query"`
	SearchType string   `json:"search_type,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	searchType := search.Type(req.SearchType)
	if searchType == "" {
		searchType = search.TypeHybrid
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.SearchTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.engine.Search(ctx, search.Request{
		Query:     req.Query,
		Type:      searchType,
		Limit:     req.Limit,
		Threshold: req.Threshold,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	elapsed := time.Since(start)
	s.searchStats.record(string(searchType), elapsed)

	writeData(w, http.StatusOK, map[string]any{
		"query":          req.Query,
		"search_type":    searchType,
		"results":        results,
		"total_results":  len(results),
		"search_time_ms": elapsed.Milliseconds(),
	})
}

// ---------------------------------------------------------------------------
// Stats

func (s *Server) handleStatsSystem(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	summary, err := s.ledger.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	payload := map[string]any{
		"version":           hound.Version,
		"total_chunks":      storeStats.TotalChunks,
		"total_files":       summary.TotalFiles,
		"total_directories": s.registry.Count(),
		"vector_dimension":  storeStats.Dimension,
	}
	if summary.LastIndexed != nil {
		payload["last_indexed_at"] = summary.LastIndexed
	}
	if s.embedder != nil {
		payload["embedder_model"] = s.embedder.Model()
	} else {
		payload["embedder_model"] = "none (keyword-only)"
	}
	writeData(w, http.StatusOK, payload)
}

func (s *Server) handleStatsSearch(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.searchStats.snapshot())
}

func (s *Server) handleStatsDirectories(w http.ResponseWriter, r *http.Request) {
	entries := s.registry.List()
	writeData(w, http.StatusOK, map[string]any{"directories": entries, "total": len(entries)})
}
