// Copyright 2025 Signia Protocol
//
// Plugin Host Tests

package plugin

import (
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
)

type stubPlugin struct {
	graph *ir.Graph
	err   error
}

func (s *stubPlugin) Name() string                      { return "stub" }
func (s *stubPlugin) Version() string                   { return "0.1.0" }
func (s *stubPlugin) Supports(kind ir.ArtifactKind) bool { return kind == ir.KindConfig }
func (s *stubPlugin) Execute(tree *input.Tree, cfg Config) (*ir.Graph, error) {
	return s.graph, s.err
}

func stubGraph() *ir.Graph {
	return &ir.Graph{
		Artifact: ir.Descriptor{Kind: ir.KindConfig, Name: "stub", Labels: []string{"b", "a"}},
		Entities: []ir.Entity{
			{ID: "ent:setting:x", Kind: "setting", Name: "x", Attrs: map[string]interface{}{}, Tags: []string{"z", "a", "a"}},
		},
	}
}

func emptyTree(t *testing.T) *input.Tree {
	t.Helper()
	tree, err := input.FromFile("cfg.yaml", []byte("x: 1\n"), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	return tree
}

func TestHost_ResolveUnknown(t *testing.T) {
	host := NewHost(ir.DefaultBounds())
	_, err := host.Resolve(ir.KindSpec)
	if fault.CodeOf(err) != fault.PluginUnknown {
		t.Errorf("expected PluginUnknown, got %v", err)
	}
}

func TestHost_RegisterRejectsMismatch(t *testing.T) {
	host := NewHost(ir.DefaultBounds())
	if err := host.Register(ir.KindRepo, &stubPlugin{}); err == nil {
		t.Error("registering a plugin for an unsupported kind must fail")
	}
}

func TestHost_RegisterRejectsDuplicate(t *testing.T) {
	host := NewHost(ir.DefaultBounds())
	if err := host.Register(ir.KindConfig, &stubPlugin{}); err != nil {
		t.Fatal(err)
	}
	if err := host.Register(ir.KindConfig, &stubPlugin{}); err == nil {
		t.Error("duplicate registration must fail")
	}
}

func TestHost_ExecuteNormalizesAndValidates(t *testing.T) {
	host := NewHost(ir.DefaultBounds())
	if err := host.Register(ir.KindConfig, &stubPlugin{graph: stubGraph()}); err != nil {
		t.Fatal(err)
	}
	g, rec, err := host.Execute(emptyTree(t), ir.KindConfig, Config{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if rec.Name != "stub" || rec.Version != "0.1.0" {
		t.Errorf("record mismatch: %+v", rec)
	}
	tags := g.Entities[0].Tags
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "z" {
		t.Errorf("tags not normalized: %v", tags)
	}
}

func TestHost_ExecuteEnforcesBounds(t *testing.T) {
	host := NewHost(ir.Bounds{MaxNodes: 1, MaxEdges: 10})
	g := stubGraph()
	g.Entities = append(g.Entities, ir.Entity{
		ID: "ent:setting:y", Kind: "setting", Name: "y",
		Attrs: map[string]interface{}{}, Tags: []string{},
	})
	if err := host.Register(ir.KindConfig, &stubPlugin{graph: g}); err != nil {
		t.Fatal(err)
	}
	_, _, err := host.Execute(emptyTree(t), ir.KindConfig, Config{})
	if fault.CodeOf(err) != fault.PluginBoundsExceeded {
		t.Errorf("expected PluginBoundsExceeded, got %v", err)
	}
}

func TestConfigHash_Stable(t *testing.T) {
	a, err := Config{"b": int64(2), "a": "x"}.Hash()
	if err != nil {
		t.Fatal(err)
	}
	b, err := Config{"a": "x", "b": int64(2)}.Hash()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("config hash must not depend on key order")
	}

	empty, err := Config(nil).Hash()
	if err != nil {
		t.Fatal(err)
	}
	want := hashing.Sum(hashing.DomainPluginConfig, []byte("{}"))
	if empty != want {
		t.Errorf("nil config must hash as the empty object: got %x, want %x", empty, want)
	}
}

func TestConfigHash_RejectsFloats(t *testing.T) {
	if _, err := (Config{"ratio": 1.5}).Hash(); err == nil {
		t.Error("float config values must be rejected")
	}
}
