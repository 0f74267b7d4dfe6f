// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	errSubscriptionsDisabled   = errors.New("subscriptions are not configured")
	errRecommendationsDisabled = errors.New("recommendations are not configured")
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a 400 with err as detail
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Detail: err.Error()})
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
}

func writeConflict(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusConflict, errorBody{Error: "conflict", Detail: err.Error()})
}

func writeBadGateway(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream_unavailable", Detail: err.Error()})
}

func writeInternal(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
}

func writeServiceUnavailable(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable", Detail: err.Error()})
}
