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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/scheduler"
	"github.com/kadirpekel/hound/pkg/search"
)

// envelope is the uniform JSON response shape.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// errorKind maps an error to its HTTP status and a stable machine-readable
// kind. Messages are sanitized: internal errors never leak details.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, registry.ErrInvalidPath),
		errors.Is(err, search.ErrEmptyQuery),
		errors.Is(err, search.ErrUnknownType):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrKeyRevoked):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrKeyExpired):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, registry.ErrNotRegistered),
		errors.Is(err, scheduler.ErrTaskNotFound),
		errors.Is(err, auth.ErrKeyNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, registry.ErrAlreadyRegistered), errors.Is(err, auth.ErrNameTaken):
		return http.StatusConflict, "conflict"
	case errors.Is(err, search.ErrEmbedderUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := errorKind(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		message = "internal server error"
	}
	writeJSON(w, status, envelope{Success: false, Message: message, Error: kind})
}

// badRequest reports a malformed request body or parameter.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: message, Error: "invalid_input"})
}
