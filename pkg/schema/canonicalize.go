// Copyright 2025 Signia Protocol
//
// Canonicalizer
// Transforms a validated IR graph into the canonical schema document: total
// orders on every collection, normalized string attributes, object
// properties sorted by name. Ties after the full tie-breaker chain are an
// error because ids are required to be unique.

package schema

import (
	"sort"
	"strings"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
)

// Canonicalize builds the schema document from a validated graph. The graph
// is copied; the caller's slices are not mutated.
func Canonicalize(g *ir.Graph) (*Document, error) {
	d := &Document{
		Artifact:    g.Artifact,
		Entities:    append([]ir.Entity(nil), g.Entities...),
		Edges:       append([]ir.Edge(nil), g.Edges...),
		Types:       append([]ir.TypeDef(nil), g.Types...),
		Constraints: append([]ir.Constraint(nil), g.Constraints...),
	}

	d.Artifact.Name = normalizeString(d.Artifact.Name)
	d.Artifact.Namespace = normalizeString(d.Artifact.Namespace)
	d.Artifact.Ref = normalizeString(d.Artifact.Ref)

	for i := range d.Entities {
		e := &d.Entities[i]
		e.Name = normalizeString(e.Name)
		e.Attrs = normalizeAttrs(e.Attrs)
	}
	for i := range d.Edges {
		d.Edges[i].Attrs = normalizeAttrs(d.Edges[i].Attrs)
	}
	for i := range d.Types {
		t := &d.Types[i]
		t.Name = normalizeString(t.Name)
		t.Definition = normalizeAttrs(t.Definition)
		t.Attrs = normalizeAttrs(t.Attrs)
		sortObjectProperties(t)
	}
	for i := range d.Constraints {
		c := &d.Constraints[i]
		c.Predicate = normalizeAttrs(c.Predicate)
		c.Attrs = normalizeAttrs(c.Attrs)
	}

	sort.SliceStable(d.Entities, func(i, j int) bool {
		a, b := &d.Entities[i], &d.Entities[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	sort.SliceStable(d.Edges, func(i, j int) bool {
		a, b := &d.Edges[i], &d.Edges[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.ID < b.ID
	})
	sort.SliceStable(d.Types, func(i, j int) bool {
		a, b := &d.Types[i], &d.Types[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})
	sort.SliceStable(d.Constraints, func(i, j int) bool {
		a, b := &d.Constraints[i], &d.Constraints[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ID < b.ID
	})

	if err := checkNoTies(d); err != nil {
		return nil, err
	}
	return d, nil
}

// checkNoTies rejects adjacent items whose full sort key is identical; a tie
// after the complete chain means duplicate ids slipped past validation.
func checkNoTies(d *Document) error {
	for i := 1; i < len(d.Entities); i++ {
		if d.Entities[i-1].ID == d.Entities[i].ID {
			return tieFault(d.Entities[i].ID)
		}
	}
	for i := 1; i < len(d.Edges); i++ {
		if d.Edges[i-1].ID == d.Edges[i].ID {
			return tieFault(d.Edges[i].ID)
		}
	}
	for i := 1; i < len(d.Types); i++ {
		if d.Types[i-1].ID == d.Types[i].ID {
			return tieFault(d.Types[i].ID)
		}
	}
	for i := 1; i < len(d.Constraints); i++ {
		if d.Constraints[i-1].ID == d.Constraints[i].ID {
			return tieFault(d.Constraints[i].ID)
		}
	}
	return nil
}

func tieFault(id string) error {
	return fault.New(fault.CanonicalizationFailed, "sort tie after full tie-breaker chain").
		With("reason", "duplicate_id").
		With("id", id)
}

// sortObjectProperties orders an object type's properties by name.
func sortObjectProperties(t *ir.TypeDef) {
	if t.Kind != ir.TypeObject || t.Definition == nil {
		return
	}
	props, ok := t.Definition["properties"].([]interface{})
	if !ok {
		return
	}
	sort.SliceStable(props, func(i, j int) bool {
		a, _ := props[i].(map[string]interface{})
		b, _ := props[j].(map[string]interface{})
		an, _ := a["name"].(string)
		bn, _ := b["name"].(string)
		return an < bn
	})
	t.Definition["properties"] = props
}

// normalizeString applies the newline rules of the normalizer to a string
// destined for a hashed domain.
func normalizeString(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// normalizeAttrs rewrites an attribute tree into the canonical value model:
// string slices become generic arrays, small integer types widen to int64,
// and strings get newline normalization. Always returns a non-nil map so
// empty attrs encode as {}.
func normalizeAttrs(attrs map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		out[normalizeString(k)] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case string:
		return normalizeString(vv)
	case int:
		return int64(vv)
	case int32:
		return int64(vv)
	case []string:
		out := make([]interface{}, len(vv))
		for i, s := range vv {
			out[i] = normalizeString(s)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, item := range vv {
			out[i] = normalizeValue(item)
		}
		return out
	case map[string]interface{}:
		return normalizeAttrs(vv)
	default:
		return v
	}
}

func stringsValue(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, s := range values {
		out[i] = s
	}
	return out
}

func attrsValue(attrs map[string]interface{}) map[string]interface{} {
	if attrs == nil {
		return map[string]interface{}{}
	}
	return attrs
}

func sortByID[T any](items []T, id func(T) string) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
