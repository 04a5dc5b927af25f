// Copyright 2025 Signia Protocol
//
// Configuration Tests

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != ":8420" {
		t.Errorf("default listen addr mismatch: %s", cfg.ListenAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestValidate_DatabaseRequired(t *testing.T) {
	cfg := &Config{ListenAddr: ":1", DatabaseRequired: true, DBMaxOpenConns: 1, LogLevel: "info"}
	if err := cfg.Validate(); err == nil {
		t.Error("required database without URL must fail validation")
	}
}

func TestLoadPolicyFile(t *testing.T) {
	t.Setenv("SIGNIA_TEST_ROOT", "pkg:/")
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `policy:
  path_root: ${SIGNIA_TEST_ROOT}
  newline: lf
  encoding: utf-8
  symlinks: resolve-within-root
  network: allow-pinned-only
  max_files: 10
options:
  inclusion_proofs: false
  manifest_hash: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	pf, err := LoadPolicyFile(path)
	if err != nil {
		t.Fatalf("load policy failed: %v", err)
	}
	if pf.Policy.PathRoot != "pkg:/" {
		t.Errorf("env substitution failed: %s", pf.Policy.PathRoot)
	}
	if pf.Policy.Symlinks != input.SymlinksResolveRoot || pf.Policy.Network != input.NetworkPinnedOnly {
		t.Errorf("policy options mismatch: %+v", pf.Policy)
	}
	if pf.Policy.MaxFiles != 10 {
		t.Errorf("limit override mismatch: %d", pf.Policy.MaxFiles)
	}
	if pf.Options.InclusionProofs || !pf.Options.ManifestHash {
		t.Errorf("options mismatch: %+v", pf.Options)
	}
}

func TestLoadPolicyFile_RejectsPreserve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("policy:\n  newline: preserve\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicyFile(path); err == nil {
		t.Error("newline=preserve must be rejected")
	}
}
