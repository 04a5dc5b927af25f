// Copyright 2025 Signia Protocol
//
// Compile and Verify Handlers

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/verification"
)

// maxRequestBytes caps request bodies ahead of the policy limits.
const maxRequestBytes = 512 * 1024 * 1024

type compileResponse struct {
	JobID      string          `json:"job_id"`
	SchemaID   string          `json:"schema_id"`
	SchemaHash string          `json:"schema_hash"`
	ProofRoot  string          `json:"proof_root"`
	LeafCount  int             `json:"leaf_count"`
	Stored     bool            `json:"stored"`
	Schema     json.RawMessage `json:"schema"`
	Manifest   json.RawMessage `json:"manifest"`
	Proof      json.RawMessage `json:"proof"`
}

// handleCompile compiles the request body. The artifact kind comes from the
// "kind" query parameter; an optional "config" parameter carries the plugin
// config as JSON; "name" names single-file inputs.
func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	kind := ir.ArtifactKind(r.URL.Query().Get("kind"))
	if kind == "" {
		respondFault(w, fault.New(fault.PluginUnknown, "kind query parameter is required"))
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "input"
	}

	cfg := plugin.Config{}
	if rawCfg := r.URL.Query().Get("config"); rawCfg != "" {
		v, err := canonical.Decode([]byte(rawCfg))
		if err != nil {
			respondFault(w, err)
			return
		}
		obj, ok := v.(map[string]interface{})
		if !ok {
			respondFault(w, fault.New(fault.CanonicalizationFailed, "plugin config must be an object"))
			return
		}
		cfg = plugin.Config(obj)
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		respondFault(w, fault.New(fault.Internal, "request body is unreadable"))
		return
	}

	jobID := uuid.New()
	opts := s.options
	opts.NonHashed = map[string]interface{}{
		"job_id":     jobID.String(),
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}

	start := time.Now()
	b, err := s.compiler.CompileBytes(r.Context(), name, data, kind, cfg, s.policy, opts)
	compileDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		compileTotal.WithLabelValues(string(kind), string(fault.CodeOf(err))).Inc()
		s.logger.Printf("compile job %s failed: %v", jobID, err)
		respondFault(w, err)
		return
	}
	compileTotal.WithLabelValues(string(kind), "ok").Inc()
	bundleLeafCount.Observe(float64(b.LeafCount))

	summary, err := bundle.Inspect(b.Files())
	if err != nil {
		respondFault(w, err)
		return
	}

	stored := false
	if s.repo != nil {
		stored, err = s.repo.Put(r.Context(), b, summary.ArtifactKind, summary.ArtifactName, jobID)
		if err != nil {
			s.logger.Printf("compile job %s: store failed: %v", jobID, err)
		}
	}
	respondJSON(w, http.StatusOK, compileResponse{
		JobID:      jobID.String(),
		SchemaID:   summary.SchemaID,
		SchemaHash: summary.SchemaHash,
		ProofRoot:  summary.ProofRoot,
		LeafCount:  b.LeafCount,
		Stored:     stored,
		Schema:     json.RawMessage(b.SchemaBytes),
		Manifest:   json.RawMessage(b.ManifestBytes),
		Proof:      json.RawMessage(b.ProofBytes),
	})
}

type verifyRequest struct {
	// Raw messages preserve the exact bytes; verification is byte-precise.
	Schema   json.RawMessage `json:"schema"`
	Manifest json.RawMessage `json:"manifest"`
	Proof    json.RawMessage `json:"proof"`
	Strict   *bool           `json:"strict,omitempty"`
}

// handleVerify verifies a bundle carried in the request body.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		respondFault(w, fault.New(fault.Internal, "request body is unreadable"))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		respondFault(w, fault.New(fault.BundleInvalidSchema, "request is not a bundle"))
		return
	}

	strict := s.strict
	if req.Strict != nil {
		strict = *req.Strict
	}
	verifier := verification.NewVerifier(&verification.Config{Strict: strict})
	report, err := verifier.VerifyBundle(bundle.Files{
		Schema:   req.Schema,
		Manifest: req.Manifest,
		Proof:    req.Proof,
	})
	if err != nil {
		verifyTotal.WithLabelValues(string(fault.CodeOf(err))).Inc()
		respondJSON(w, http.StatusUnprocessableEntity, report)
		return
	}
	verifyTotal.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, report)
}
