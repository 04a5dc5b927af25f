// Copyright 2025 Signia Protocol
//
// Bundle Assembler Tests

package bundle

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/merkle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/schema"
)

func testDocument(t *testing.T) *schema.Document {
	t.Helper()
	g := &ir.Graph{
		Artifact: ir.Descriptor{Kind: ir.KindOpenAPI, Name: "demo", Labels: []string{}},
		Entities: []ir.Entity{
			{
				ID:    "ent:endpoint:GET_/health",
				Kind:  "endpoint",
				Name:  "GET /health",
				Attrs: map[string]interface{}{"method": "GET", "route": "/health"},
				Tags:  []string{"public"},
			},
		},
	}
	doc, err := schema.Canonicalize(g)
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func testRecord() plugin.Record {
	cfgHash, _ := plugin.Config{}.Hash()
	return plugin.Record{Name: "openapi", Version: "1.0.0", ConfigHash: cfgHash}
}

func TestAssemble_HashesConsistent(t *testing.T) {
	b, err := Assemble(testDocument(t), testRecord(), input.DefaultPolicy(), DefaultOptions())
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}

	schemaDoc, err := canonical.Decode(b.SchemaBytes)
	if err != nil {
		t.Fatal(err)
	}
	schemaID := schemaDoc.(map[string]interface{})["schema_id"].(string)
	if schemaID != hashing.Hex(b.SchemaHash) {
		t.Errorf("schema_id mismatch: %s vs %s", schemaID, hashing.Hex(b.SchemaHash))
	}

	manifest, err := canonical.Decode(b.ManifestBytes)
	if err != nil {
		t.Fatal(err)
	}
	mb := manifest.(map[string]interface{})["bundle"].(map[string]interface{})
	if mb["schema_hash"] != hashing.Hex(b.SchemaHash) {
		t.Error("manifest schema_hash mismatch")
	}
	if mb["proof_root"] != hashing.Hex(b.ProofRoot) {
		t.Error("manifest proof_root mismatch")
	}
	if mb["manifest_hash"] != hashing.Hex(b.ManifestHash) {
		t.Error("manifest manifest_hash mismatch")
	}
}

func TestAssemble_EmptyLeafSet(t *testing.T) {
	g := &ir.Graph{Artifact: ir.Descriptor{Kind: ir.KindConfig, Name: "empty", Labels: []string{}}}
	doc, err := schema.Canonicalize(g)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Assemble(doc, testRecord(), input.DefaultPolicy(), DefaultOptions())
	if err != nil {
		t.Fatalf("assemble failed: %v", err)
	}
	if b.LeafCount != 0 {
		t.Errorf("leaf count mismatch: %d", b.LeafCount)
	}
	if b.ProofRoot != merkle.EmptyRoot() {
		t.Error("empty schema must use the empty proof root")
	}
	if strings.Contains(string(b.ProofBytes), "inclusion_proofs") {
		t.Error("empty schema must not carry inclusion proofs")
	}
}

func TestWriteDir_ReadDir_RoundTrip(t *testing.T) {
	b, err := Assemble(testDocument(t), testRecord(), input.DefaultPolicy(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "bundle")
	if err := b.WriteDir(dir); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	f, err := ReadDir(dir)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(f.Schema, b.SchemaBytes) || !bytes.Equal(f.Manifest, b.ManifestBytes) || !bytes.Equal(f.Proof, b.ProofBytes) {
		t.Error("bundle bytes changed across write/read")
	}

	// No temp files may remain after an atomic write.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("unexpected files in bundle directory: %d", len(entries))
	}
}

func TestInspect(t *testing.T) {
	b, err := Assemble(testDocument(t), testRecord(), input.DefaultPolicy(), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s, err := Inspect(b.Files())
	if err != nil {
		t.Fatalf("inspect failed: %v", err)
	}
	if s.Entities != 1 || s.Edges != 0 || s.Types != 0 || s.Constraints != 0 {
		t.Errorf("counts mismatch: %+v", s)
	}
	if s.LeafCount != 1 {
		t.Errorf("leaf count mismatch: %d", s.LeafCount)
	}
	if s.ArtifactKind != "openapi" || s.ArtifactName != "demo" {
		t.Errorf("artifact mismatch: %+v", s)
	}
	if s.SchemaHash != hashing.Hex(b.SchemaHash) {
		t.Error("schema hash mismatch")
	}
	if len(s.Plugins) != 1 || s.Plugins[0] != "openapi@1.0.0" {
		t.Errorf("plugins mismatch: %v", s.Plugins)
	}
}
