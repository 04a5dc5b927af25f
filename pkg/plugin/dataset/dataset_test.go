// Copyright 2025 Signia Protocol
//
// Dataset Plugin Tests

package dataset

import (
	"testing"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const csvDoc = `id,name,score,active
1,alice,9.5,true
2,bob,7,false
3,carol,8.25,true
`

func execute(t *testing.T, doc string) *ir.Graph {
	t.Helper()
	tree, err := input.FromFile("data.csv", []byte(doc), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	g, err := New().Execute(tree, plugin.Config{})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	ir.NormalizeSets(g)
	if err := ir.Validate(g, ir.DefaultBounds()); err != nil {
		t.Fatalf("emitted graph invalid: %v", err)
	}
	return g
}

func TestExecute_Columns(t *testing.T) {
	g := execute(t, csvDoc)
	if len(g.Entities) != 4 {
		t.Fatalf("column count mismatch: %d", len(g.Entities))
	}
	byID := map[string]ir.Entity{}
	for _, e := range g.Entities {
		byID[e.ID] = e
	}
	if byID["ent:column:id"].Attrs["type"] != "type:integer:column:id" {
		t.Errorf("id column type mismatch: %v", byID["ent:column:id"].Attrs)
	}
	if byID["ent:column:name"].Attrs["type"] != "type:string:column:name" {
		t.Errorf("name column type mismatch: %v", byID["ent:column:name"].Attrs)
	}
	if byID["ent:column:score"].Attrs["type"] != "type:number:column:score" {
		t.Errorf("score column type mismatch: %v", byID["ent:column:score"].Attrs)
	}
	if byID["ent:column:active"].Attrs["type"] != "type:boolean:column:active" {
		t.Errorf("active column type mismatch: %v", byID["ent:column:active"].Attrs)
	}
}

func TestExecute_RowShapeConstraint(t *testing.T) {
	g := execute(t, csvDoc)
	if len(g.Constraints) != 1 {
		t.Fatalf("constraint count mismatch: %d", len(g.Constraints))
	}
	c := g.Constraints[0]
	if c.Predicate["column_count"] != int64(4) || c.Predicate["row_count"] != int64(3) {
		t.Errorf("row shape predicate mismatch: %v", c.Predicate)
	}
	if len(c.Scope.Entities) != 4 || len(c.Scope.Types) != 4 {
		t.Errorf("scope mismatch: %+v", c.Scope)
	}
}

func TestExecute_EmptyInputRejected(t *testing.T) {
	tree, err := input.FromFile("data.csv", []byte(""), input.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New().Execute(tree, plugin.Config{}); err == nil {
		t.Error("empty dataset must be rejected")
	}
}
