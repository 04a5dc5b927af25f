// Copyright 2025 Signia Protocol
//
// Workflow Plugin Tests

package workflow

import (
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const buildWorkflow = `name: release
steps:
  - id: build
    run: make build
    params:
      target: linux
      parallel: 4
  - id: test
    run: make test
    depends_on: [build]
  - id: publish
    run: make publish
    depends_on: [build, test]
`

func execute(t *testing.T, doc string, pol input.Policy) (*ir.Graph, error) {
	t.Helper()
	tree, err := input.FromFile("workflow.yaml", []byte(doc), pol)
	if err != nil {
		t.Fatal(err)
	}
	return New().Execute(tree, plugin.Config{})
}

func TestExecute_StepsAndEdges(t *testing.T) {
	g, err := execute(t, buildWorkflow, input.DefaultPolicy())
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if g.Artifact.Name != "release" || g.Artifact.Kind != ir.KindWorkflow {
		t.Errorf("artifact mismatch: %+v", g.Artifact)
	}
	if len(g.Entities) != 3 {
		t.Fatalf("step count mismatch: %d", len(g.Entities))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("edge count mismatch: %d", len(g.Edges))
	}
	for _, e := range g.Edges {
		if e.Relation != "depends_on" {
			t.Errorf("unexpected relation %s", e.Relation)
		}
	}

	ir.NormalizeSets(g)
	if err := ir.Validate(g, ir.DefaultBounds()); err != nil {
		t.Fatalf("emitted graph invalid: %v", err)
	}
}

func TestExecute_ParamsType(t *testing.T) {
	g, err := execute(t, buildWorkflow, input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Types) != 1 {
		t.Fatalf("type count mismatch: %d", len(g.Types))
	}
	td := g.Types[0]
	if td.ID != "type:object:step:build:params" || td.Kind != ir.TypeObject {
		t.Errorf("params type mismatch: %+v", td)
	}
	props := td.Definition["properties"].([]interface{})
	if len(props) != 2 {
		t.Fatalf("property count mismatch: %d", len(props))
	}
	first := props[0].(map[string]interface{})
	if first["name"] != "parallel" || first["shape"] != "integer" {
		t.Errorf("property inference mismatch: %v", first)
	}
}

func TestExecute_AcyclicConstraint(t *testing.T) {
	g, err := execute(t, buildWorkflow, input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Constraints) != 1 {
		t.Fatalf("constraint count mismatch: %d", len(g.Constraints))
	}
	c := g.Constraints[0]
	if c.ID != "c:acyclic:steps" || len(c.Scope.Entities) != 3 {
		t.Errorf("constraint mismatch: %+v", c)
	}
}

func TestExecute_UnknownDependency(t *testing.T) {
	doc := `steps:
  - id: a
    depends_on: [ghost]
`
	_, err := execute(t, doc, input.DefaultPolicy())
	if fault.CodeOf(err) != fault.IrInvalid {
		t.Errorf("expected IrInvalid, got %v", err)
	}
}

func TestExecute_RemoteSourceDenied(t *testing.T) {
	doc := `steps:
  - id: fetch
    source: https://example.com/task.tar.gz
`
	_, err := execute(t, doc, input.DefaultPolicy())
	if fault.CodeOf(err) != fault.InputNetworkDisabled {
		t.Errorf("expected InputNetworkDisabled, got %v", err)
	}
}

func TestExecute_RemoteSourcePinned(t *testing.T) {
	doc := `steps:
  - id: fetch
    source: https://example.com/task.tar.gz
    pinned_sha256: ` + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" + `
`
	pol := input.DefaultPolicy()
	pol.Network = input.NetworkPinnedOnly
	g, err := execute(t, doc, pol)
	if err != nil {
		t.Fatalf("pinned remote source rejected: %v", err)
	}
	if g.Entities[0].Attrs["pinned_sha256"] == "" {
		t.Error("pin not recorded on step")
	}
}
