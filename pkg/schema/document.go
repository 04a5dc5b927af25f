// Copyright 2025 Signia Protocol
//
// Canonical Schema Document
// The structural document emitted by the canonicalizer. The hashed view is
// the document without schema_id and meta; schema_id is filled with the
// lowercase hex of the schema hash after sealing.

package schema

import (
	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
)

// Version is the schema document version.
const Version = "v1"

// Document is the canonical structural schema. Collections are held in
// their total order; the document is immutable once sealed.
type Document struct {
	SchemaID    string
	Artifact    ir.Descriptor
	Entities    []ir.Entity
	Edges       []ir.Edge
	Types       []ir.TypeDef
	Constraints []ir.Constraint
	Meta        map[string]interface{}
}

// LeafItem is the canonical projection of one schema item, the unit of the
// Merkle commitment.
type LeafItem struct {
	Kind       string
	ID         string
	Projection map[string]interface{}
}

// DescriptorValue renders an artifact descriptor as a canonical value tree.
func DescriptorValue(d ir.Descriptor) map[string]interface{} {
	return map[string]interface{}{
		"kind":      string(d.Kind),
		"name":      d.Name,
		"namespace": d.Namespace,
		"ref":       d.Ref,
		"labels":    stringsValue(d.Labels),
	}
}

// EntityValue renders an entity projection. Absent path and digest are
// omitted entirely rather than emitted as empty strings.
func EntityValue(e ir.Entity) map[string]interface{} {
	v := map[string]interface{}{
		"id":    e.ID,
		"kind":  e.Kind,
		"name":  e.Name,
		"attrs": attrsValue(e.Attrs),
		"tags":  stringsValue(e.Tags),
	}
	if e.Path != "" {
		v["path"] = e.Path
	}
	if e.Digest != "" {
		v["digest"] = e.Digest
	}
	return v
}

// EdgeValue renders an edge projection.
func EdgeValue(e ir.Edge) map[string]interface{} {
	return map[string]interface{}{
		"id":       e.ID,
		"relation": e.Relation,
		"from":     e.From,
		"to":       e.To,
		"attrs":    attrsValue(e.Attrs),
	}
}

// TypeValue renders a type definition projection.
func TypeValue(t ir.TypeDef) map[string]interface{} {
	return map[string]interface{}{
		"id":         t.ID,
		"kind":       string(t.Kind),
		"name":       t.Name,
		"definition": attrsValue(t.Definition),
		"attrs":      attrsValue(t.Attrs),
	}
}

// ConstraintValue renders a constraint projection.
func ConstraintValue(c ir.Constraint) map[string]interface{} {
	return map[string]interface{}{
		"id":   c.ID,
		"kind": c.Kind,
		"scope": map[string]interface{}{
			"entities": stringsValue(c.Scope.Entities),
			"types":    stringsValue(c.Scope.Types),
		},
		"predicate": attrsValue(c.Predicate),
		"severity":  string(c.Severity),
		"attrs":     attrsValue(c.Attrs),
	}
}

// HashedValue renders the hashed view of the document: everything except
// schema_id and meta.
func (d *Document) HashedValue() map[string]interface{} {
	entities := make([]interface{}, len(d.Entities))
	for i, e := range d.Entities {
		entities[i] = EntityValue(e)
	}
	edges := make([]interface{}, len(d.Edges))
	for i, e := range d.Edges {
		edges[i] = EdgeValue(e)
	}
	types := make([]interface{}, len(d.Types))
	for i, t := range d.Types {
		types[i] = TypeValue(t)
	}
	constraints := make([]interface{}, len(d.Constraints))
	for i, c := range d.Constraints {
		constraints[i] = ConstraintValue(c)
	}
	return map[string]interface{}{
		"schema_version": Version,
		"hash_domain":    hashing.DomainSchema,
		"root": map[string]interface{}{
			"artifact":    DescriptorValue(d.Artifact),
			"graph":       map[string]interface{}{"entities": entities, "edges": edges},
			"types":       map[string]interface{}{"definitions": types},
			"constraints": map[string]interface{}{"rules": constraints},
		},
	}
}

// Value renders the full document including schema_id and meta.
func (d *Document) Value() map[string]interface{} {
	v := d.HashedValue()
	if d.SchemaID != "" {
		v["schema_id"] = d.SchemaID
	}
	if len(d.Meta) > 0 {
		v["meta"] = d.Meta
	}
	return v
}

// HashedBytes returns the canonical bytes of the hashed view.
func (d *Document) HashedBytes() ([]byte, error) {
	return canonical.Encode(d.HashedValue())
}

// Hash computes H(signia:schema:v1, hashed bytes).
func (d *Document) Hash() ([hashing.Size]byte, error) {
	b, err := d.HashedBytes()
	if err != nil {
		return [hashing.Size]byte{}, err
	}
	return hashing.Sum(hashing.DomainSchema, b), nil
}

// Seal computes the schema hash and fills schema_id with its lowercase hex.
// The document must not change afterwards.
func (d *Document) Seal() ([hashing.Size]byte, error) {
	h, err := d.Hash()
	if err != nil {
		return h, err
	}
	d.SchemaID = hashing.Hex(h)
	return h, nil
}

// CanonicalBytes returns the canonical bytes of the full document, as
// written to schema.json.
func (d *Document) CanonicalBytes() ([]byte, error) {
	return canonical.Encode(d.Value())
}

// Leaves returns the canonical projections of every schema item in leaf
// order: entities, then edges, then types, then constraints, each sorted by
// stable id.
func (d *Document) Leaves() []LeafItem {
	out := make([]LeafItem, 0, len(d.Entities)+len(d.Edges)+len(d.Types)+len(d.Constraints))
	for _, e := range sortByID(d.Entities, func(e ir.Entity) string { return e.ID }) {
		out = append(out, LeafItem{Kind: "entity", ID: e.ID, Projection: EntityValue(e)})
	}
	for _, e := range sortByID(d.Edges, func(e ir.Edge) string { return e.ID }) {
		out = append(out, LeafItem{Kind: "edge", ID: e.ID, Projection: EdgeValue(e)})
	}
	for _, t := range sortByID(d.Types, func(t ir.TypeDef) string { return t.ID }) {
		out = append(out, LeafItem{Kind: "type", ID: t.ID, Projection: TypeValue(t)})
	}
	for _, c := range sortByID(d.Constraints, func(c ir.Constraint) string { return c.ID }) {
		out = append(out, LeafItem{Kind: "constraint", ID: c.ID, Projection: ConstraintValue(c)})
	}
	return out
}
