// Copyright 2025 Signia Protocol
//
// Compiler API Server
// HTTP surface over the deterministic core. Handlers add no semantics: the
// core's operations run unchanged and every response is derived from their
// results. Nothing here can affect determinism.
//
// Endpoints:
// - POST /api/v1/compile              - compile raw input into a bundle
// - POST /api/v1/verify               - verify a received bundle
// - GET  /api/v1/bundles              - list stored bundles
// - GET  /api/v1/bundles/{hash}       - download a stored bundle
// - GET  /api/v1/bundles/{hash}/inspect - summarize a stored bundle
// - GET  /health                      - component health
// - GET  /metrics                     - Prometheus metrics

package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/config"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/pipeline"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/store"
)

// Server hosts the compiler API.
type Server struct {
	compiler *pipeline.Compiler
	repo     *store.Repository
	policy   input.Policy
	options  bundle.Options
	strict   bool
	logger   *log.Logger
	http     *http.Server
}

// New creates the server. repo may be nil when no store is attached.
func New(cfg *config.Config, compiler *pipeline.Compiler, repo *store.Repository, pol input.Policy, opts bundle.Options) *Server {
	s := &Server{
		compiler: compiler,
		repo:     repo,
		policy:   pol,
		options:  opts,
		strict:   cfg.StrictVerify,
		logger:   log.New(log.Writer(), "[API] ", log.LstdFlags),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/compile", s.handleCompile)
	mux.HandleFunc("/api/v1/verify", s.handleVerify)
	mux.HandleFunc("/api/v1/bundles", s.handleListBundles)
	mux.HandleFunc("/api/v1/bundles/", s.handleBundle)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Printf("listening on %s", s.http.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	// Embedded bundle documents are canonical bytes; HTML escaping would
	// alter them.
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Detail  map[string]string `json:"detail,omitempty"`
}

func respondFault(w http.ResponseWriter, err error) {
	f := fault.As(err)
	if f == nil {
		f = fault.New(fault.Internal, "internal failure")
	}
	respondJSON(w, statusFor(f.Code), map[string]interface{}{
		"error": errorBody{Code: string(f.Code), Message: f.Message, Detail: f.Detail},
	})
}

func statusFor(code fault.Code) int {
	switch code {
	case fault.InputTooLarge, fault.LimitExceeded:
		return http.StatusRequestEntityTooLarge
	case fault.PluginUnknown:
		return http.StatusNotFound
	case fault.JobTimeout:
		return http.StatusRequestTimeout
	case fault.JobCanceled:
		return 499
	case fault.Internal:
		return http.StatusInternalServerError
	case fault.BundleHashMismatch, fault.BundleTampered,
		fault.BundleInvalidSchema, fault.BundleInvalidManifest, fault.BundleInvalidProof,
		fault.BundleCanonicalizationFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
