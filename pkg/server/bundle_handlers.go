// Copyright 2025 Signia Protocol
//
// Bundle Retrieval Handlers

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/store"
)

// handleListBundles lists stored bundles.
func (s *Server) handleListBundles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		http.Error(w, "no bundle store attached", http.StatusNotFound)
		return
	}
	records, err := s.repo.List(r.Context(), 100)
	if err != nil {
		s.logger.Printf("list bundles failed: %v", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	type item struct {
		SchemaHash   string `json:"schema_hash"`
		ProofRoot    string `json:"proof_root"`
		ArtifactKind string `json:"artifact_kind"`
		ArtifactName string `json:"artifact_name"`
	}
	items := make([]item, len(records))
	for i, rec := range records {
		items[i] = item{
			SchemaHash:   rec.SchemaHash,
			ProofRoot:    rec.ProofRoot,
			ArtifactKind: rec.ArtifactKind,
			ArtifactName: rec.ArtifactName,
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bundles": items})
}

// handleBundle serves GET /api/v1/bundles/{hash} and
// GET /api/v1/bundles/{hash}/inspect.
func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.repo == nil {
		http.Error(w, "no bundle store attached", http.StatusNotFound)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/bundles/")
	parts := strings.Split(rest, "/")
	hash := parts[0]
	if len(hash) != 64 {
		http.Error(w, "schema hash must be 64 hex characters", http.StatusBadRequest)
		return
	}

	rec, err := s.repo.Get(r.Context(), hash)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "bundle not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("load bundle %s failed: %v", hash, err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	if len(parts) > 1 && parts[1] == "inspect" {
		summary, err := bundle.Inspect(rec.Files)
		if err != nil {
			respondFault(w, err)
			return
		}
		respondJSON(w, http.StatusOK, summary)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"schema_hash": rec.SchemaHash,
		"proof_root":  rec.ProofRoot,
		"schema":      json.RawMessage(rec.Files.Schema),
		"manifest":    json.RawMessage(rec.Files.Manifest),
		"proof":       json.RawMessage(rec.Files.Proof),
	})
}

// handleHealth reports component health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type healthStatus struct {
		Status   string `json:"status"`
		Store    string `json:"store"`
		Compiler string `json:"compiler"`
	}
	status := healthStatus{Status: "ok", Store: "disabled", Compiler: "ready"}
	if s.repo != nil {
		status.Store = "connected"
	}
	respondJSON(w, http.StatusOK, status)
}
