// Arkivo - Multi-Tenant Entry and Document Store
// Copyright 2026 Arkivo Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/arkivo-dms/arkivo

package api

import (
	"net/http"

	"github.com/goccy/go-json"
)

// errorResponse is the uniform error envelope. Authorization and
// authentication denials always carry their generic message; specifics stay
// in the server logs.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
