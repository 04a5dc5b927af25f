// Copyright 2025 Signia Protocol
//
// Pipeline End-to-End Tests

package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/openapi"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/repo"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/verification"
)

const healthSpec = `openapi: 3.0.0
info:
  title: Health API
  version: 1.0.0
paths:
  /health:
    get:
      responses:
        '200':
          description: OK
`

func newCompiler(t *testing.T) *Compiler {
	t.Helper()
	host := plugin.NewHost(ir.DefaultBounds())
	if err := host.Register(ir.KindOpenAPI, openapi.New()); err != nil {
		t.Fatal(err)
	}
	if err := host.Register(ir.KindRepo, repo.New()); err != nil {
		t.Fatal(err)
	}
	return New(host)
}

func compileHealth(t *testing.T) *bundle.Bundle {
	t.Helper()
	c := newCompiler(t)
	tree, err := input.FromFile("openapi.yaml", []byte(healthSpec), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compile(context.Background(), tree, ir.KindOpenAPI, plugin.Config{}, bundle.DefaultOptions())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return b
}

func decodeObj(t *testing.T, data []byte) map[string]interface{} {
	t.Helper()
	v, err := canonical.Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return v.(map[string]interface{})
}

func TestCompile_MinimalOpenAPI(t *testing.T) {
	b := compileHealth(t)

	schemaDoc := decodeObj(t, b.SchemaBytes)
	root := schemaDoc["root"].(map[string]interface{})
	graph := root["graph"].(map[string]interface{})
	entities := graph["entities"].([]interface{})
	if len(entities) != 1 {
		t.Fatalf("entity count mismatch: got %d, want 1", len(entities))
	}
	ent := entities[0].(map[string]interface{})
	if ent["id"] != "ent:endpoint:GET_/health" {
		t.Errorf("entity id mismatch: %v", ent["id"])
	}
	attrs := ent["attrs"].(map[string]interface{})
	if attrs["method"] != "GET" || attrs["route"] != "/health" {
		t.Errorf("entity attrs mismatch: %v", attrs)
	}
	tags := ent["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "public" {
		t.Errorf("entity tags mismatch: %v", tags)
	}
	if n := len(graph["edges"].([]interface{})); n != 0 {
		t.Errorf("expected no edges, got %d", n)
	}
	if b.LeafCount != 1 {
		t.Errorf("leaf count mismatch: got %d, want 1", b.LeafCount)
	}

	// root_hash = H(proof-root, leaf_hash || uint64_be(1))
	proofDoc := decodeObj(t, b.ProofBytes)
	items := proofDoc["leaves"].(map[string]interface{})["items"].([]interface{})
	leafHex := items[0].(map[string]interface{})["hash"].(string)
	leafHash, err := hashing.ParseHex(leafHex)
	if err != nil {
		t.Fatal(err)
	}
	payload := make([]byte, 40)
	copy(payload, leafHash[:])
	binary.BigEndian.PutUint64(payload[32:], 1)
	want := hashing.Sum(hashing.DomainProofRoot, payload)
	rootHash := proofDoc["root"].(map[string]interface{})["root_hash"].(string)
	if rootHash != hashing.Hex(want) {
		t.Errorf("root_hash mismatch: got %s, want %s", rootHash, hashing.Hex(want))
	}
	if want != b.ProofRoot {
		t.Error("bundle proof root mismatch")
	}
}

func TestCompile_SmallRepo(t *testing.T) {
	c := newCompiler(t)
	files := map[string]string{
		"src/main.ts": "import { util } from './util';\nconsole.log(util);\n",
		"src/util.ts": "export const util = 1;\n",
	}
	tree := treeFromMap(t, files)
	b, err := c.Compile(context.Background(), tree, ir.KindRepo, plugin.Config{"name": "demo"}, bundle.DefaultOptions())
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if b.LeafCount != 3 {
		t.Errorf("leaf count mismatch: got %d, want 3", b.LeafCount)
	}

	schemaDoc := decodeObj(t, b.SchemaBytes)
	graph := schemaDoc["root"].(map[string]interface{})["graph"].(map[string]interface{})
	entities := graph["entities"].([]interface{})
	first := entities[0].(map[string]interface{})["id"].(string)
	second := entities[1].(map[string]interface{})["id"].(string)
	if first != "ent:module:src/main.ts" || second != "ent:module:src/util.ts" {
		t.Errorf("entity order mismatch: %s, %s", first, second)
	}
	edges := graph["edges"].([]interface{})
	if len(edges) != 1 {
		t.Fatalf("edge count mismatch: got %d, want 1", len(edges))
	}
	edge := edges[0].(map[string]interface{})
	if edge["relation"] != "imports" || edge["from"] != "ent:module:src/main.ts" || edge["to"] != "ent:module:src/util.ts" {
		t.Errorf("edge mismatch: %v", edge)
	}
}

func TestCompile_Deterministic(t *testing.T) {
	a := compileHealth(t)
	b := compileHealth(t)
	if !bytes.Equal(a.SchemaBytes, b.SchemaBytes) {
		t.Error("schema bytes differ across runs")
	}
	if !bytes.Equal(a.ManifestBytes, b.ManifestBytes) {
		t.Error("manifest bytes differ across runs")
	}
	if !bytes.Equal(a.ProofBytes, b.ProofBytes) {
		t.Error("proof bytes differ across runs")
	}
	if a.SchemaHash != b.SchemaHash || a.ProofRoot != b.ProofRoot {
		t.Error("hashes differ across runs")
	}
}

func TestCompile_SymlinkPolicyIrrelevantWithoutSymlinks(t *testing.T) {
	c := newCompiler(t)
	compileWith := func(symlinks string) *bundle.Bundle {
		pol := input.DefaultPolicy()
		pol.Symlinks = symlinks
		tree, err := input.FromFile("openapi.yaml", []byte(healthSpec), pol)
		if err != nil {
			t.Fatal(err)
		}
		b, err := c.Compile(context.Background(), tree, ir.KindOpenAPI, plugin.Config{}, bundle.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	deny := compileWith(input.SymlinksDeny)
	resolve := compileWith(input.SymlinksResolveRoot)
	if !bytes.Equal(deny.SchemaBytes, resolve.SchemaBytes) {
		t.Error("schema bytes depend on symlink policy without symlinks present")
	}
	// The policy is part of the manifest hashed view, so manifests differ;
	// the schema and proof must not.
	if !bytes.Equal(deny.ProofBytes, resolve.ProofBytes) {
		t.Error("proof bytes depend on symlink policy without symlinks present")
	}
}

func TestVerify_RoundTrip(t *testing.T) {
	b := compileHealth(t)
	for _, strict := range []bool{false, true} {
		report, err := verification.NewVerifier(&verification.Config{Strict: strict}).VerifyBundle(b.Files())
		if err != nil {
			t.Fatalf("verify(strict=%v) failed: %v", strict, err)
		}
		if !report.OK {
			t.Errorf("verify(strict=%v) not ok", strict)
		}
	}
}

func TestVerify_TamperedSchema(t *testing.T) {
	b := compileHealth(t)
	// Flip one character inside an attribute string value; the document
	// stays canonical, so only the self-consistency check can catch it.
	tampered := bytes.Replace(b.SchemaBytes, []byte(`"route":"/health"`), []byte(`"route":"/wealth"`), 1)
	if bytes.Equal(tampered, b.SchemaBytes) {
		t.Fatal("tamper target not found")
	}
	f := b.Files()
	f.Schema = tampered

	report, err := verification.NewVerifier(nil).VerifyBundle(f)
	if err == nil {
		t.Fatal("tampered bundle verified")
	}
	fa := fault.As(err)
	if fa.Code != fault.BundleTampered || fa.Get("kind") != "schema_canonical" {
		t.Errorf("wrong failure: %v", err)
	}
	if report.Failure == nil {
		t.Error("report did not record the failure")
	}
}

func TestVerify_SchemaHashMismatch(t *testing.T) {
	b := compileHealth(t)
	manifest := decodeObj(t, b.ManifestBytes)
	mb := manifest["bundle"].(map[string]interface{})
	mb["schema_hash"] = strings.Repeat("ab", 32)
	raw, err := canonical.Encode(manifest)
	if err != nil {
		t.Fatal(err)
	}
	f := b.Files()
	f.Manifest = raw

	_, err = verification.NewVerifier(nil).VerifyBundle(f)
	if err == nil {
		t.Fatal("bundle with wrong schema_hash verified")
	}
	fa := fault.As(err)
	if fa.Code != fault.BundleHashMismatch || fa.Get("kind") != "schema_hash" {
		t.Errorf("wrong failure: %v", err)
	}
	if fa.Get("expected") == "" || fa.Get("actual") != strings.Repeat("ab", 32) {
		t.Errorf("missing expected/actual details: %v", err)
	}
}

func TestVerify_SingleByteMutations(t *testing.T) {
	b := compileHealth(t)
	// Strict mode: key renames that silently drop an optional field from a
	// hashed domain must also be rejected.
	verifier := verification.NewVerifier(&verification.Config{Strict: true})

	// A sample of byte positions across each hashed document.
	mutate := func(data []byte, i int) []byte {
		out := append([]byte(nil), data...)
		out[i] ^= 0x01
		return out
	}
	for _, doc := range []struct {
		name string
		set  func(f *bundle.Files, data []byte)
		data []byte
	}{
		{"schema", func(f *bundle.Files, d []byte) { f.Schema = d }, b.SchemaBytes},
		{"manifest", func(f *bundle.Files, d []byte) { f.Manifest = d }, b.ManifestBytes},
		{"proof", func(f *bundle.Files, d []byte) { f.Proof = d }, b.ProofBytes},
	} {
		step := len(doc.data)/17 + 1
		for i := 0; i < len(doc.data); i += step {
			f := b.Files()
			doc.set(&f, mutate(doc.data, i))
			if _, err := verifier.VerifyBundle(f); err == nil {
				t.Errorf("mutation of %s byte %d not detected", doc.name, i)
			}
		}
	}
}

func TestCompile_Canceled(t *testing.T) {
	c := newCompiler(t)
	tree, err := input.FromFile("openapi.yaml", []byte(healthSpec), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compile(ctx, tree, ir.KindOpenAPI, plugin.Config{}, bundle.DefaultOptions())
	if fault.CodeOf(err) != fault.JobCanceled {
		t.Errorf("expected JobCanceled, got %v", err)
	}
}

func TestCompile_UnknownPlugin(t *testing.T) {
	c := newCompiler(t)
	tree, err := input.FromFile("spec.md", []byte("# spec"), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Compile(context.Background(), tree, ir.KindSpec, plugin.Config{}, bundle.DefaultOptions())
	if fault.CodeOf(err) != fault.PluginUnknown {
		t.Errorf("expected PluginUnknown, got %v", err)
	}
}

func TestCompile_ManifestSplit(t *testing.T) {
	c := newCompiler(t)
	tree, err := input.FromFile("openapi.yaml", []byte(healthSpec), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	opts := bundle.DefaultOptions()
	opts.NonHashed = map[string]interface{}{"job_id": "adhoc"}
	b, err := c.Compile(context.Background(), tree, ir.KindOpenAPI, plugin.Config{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	// non_hashed content must not affect the manifest hash.
	opts2 := bundle.DefaultOptions()
	opts2.NonHashed = map[string]interface{}{"job_id": "different"}
	b2, err := c.Compile(context.Background(), tree, ir.KindOpenAPI, plugin.Config{}, opts2)
	if err != nil {
		t.Fatal(err)
	}
	if b.ManifestHash != b2.ManifestHash {
		t.Error("non_hashed subtree changed the manifest hash")
	}
	if bytes.Equal(b.ManifestBytes, b2.ManifestBytes) {
		t.Error("non_hashed subtree missing from written manifest")
	}
	report, err := verification.NewVerifier(nil).VerifyBundle(b.Files())
	if err != nil || !report.OK {
		t.Errorf("bundle with non_hashed subtree failed verification: %v", err)
	}
}

func treeFromMap(t *testing.T, files map[string]string) *input.Tree {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tree, err := input.FromDir(dir, input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	return tree
}
