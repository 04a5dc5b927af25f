// Copyright 2025 Signia Protocol
//
// Intermediate Representation Model
// The typed structural graph emitted by plugins: entities, edges, type
// definitions, and constraints, held in flat arenas and linked by opaque
// string ids. No pointer graphs; referential integrity is checked
// explicitly by the validator.

package ir

// ArtifactKind classifies the compiled input.
type ArtifactKind string

const (
	KindRepo     ArtifactKind = "repo"
	KindOpenAPI  ArtifactKind = "openapi"
	KindDataset  ArtifactKind = "dataset"
	KindWorkflow ArtifactKind = "workflow"
	KindConfig   ArtifactKind = "config"
	KindSpec     ArtifactKind = "spec"
	KindUnknown  ArtifactKind = "unknown"
)

// ArtifactKinds lists every recognized kind.
var ArtifactKinds = []ArtifactKind{
	KindRepo, KindOpenAPI, KindDataset, KindWorkflow, KindConfig, KindSpec, KindUnknown,
}

// Descriptor identifies the compiled artifact. Immutable once produced by
// the normalizer and plugin.
type Descriptor struct {
	Kind      ArtifactKind `json:"kind"`
	Name      string       `json:"name"`
	Namespace string       `json:"namespace"`
	Ref       string       `json:"ref"`
	Labels    []string     `json:"labels"`
}

// Entity is a node in the structural graph. ID format: ent:<kind>:<stable-id>.
type Entity struct {
	ID     string                 `json:"id"`
	Kind   string                 `json:"kind"`
	Name   string                 `json:"name"`
	Path   string                 `json:"path,omitempty"`
	Digest string                 `json:"digest,omitempty"`
	Attrs  map[string]interface{} `json:"attrs"`
	Tags   []string               `json:"tags"`
}

// Edge links two entities. ID format:
// edge:<relation>:<from-id>:<to-id>:<tiebreaker>.
type Edge struct {
	ID       string                 `json:"id"`
	Relation string                 `json:"relation"`
	From     string                 `json:"from"`
	To       string                 `json:"to"`
	Attrs    map[string]interface{} `json:"attrs"`
}

// TypeKind enumerates the type definition variants.
type TypeKind string

const (
	TypeObject  TypeKind = "object"
	TypeArray   TypeKind = "array"
	TypeString  TypeKind = "string"
	TypeNumber  TypeKind = "number"
	TypeInteger TypeKind = "integer"
	TypeBoolean TypeKind = "boolean"
	TypeNull    TypeKind = "null"
	TypeEnum    TypeKind = "enum"
	TypeRef     TypeKind = "ref"
	TypeUnion   TypeKind = "union"
)

var typeKinds = map[TypeKind]bool{
	TypeObject: true, TypeArray: true, TypeString: true, TypeNumber: true,
	TypeInteger: true, TypeBoolean: true, TypeNull: true, TypeEnum: true,
	TypeRef: true, TypeUnion: true,
}

// TypeDef is a type definition. ID format: type:<kind>:<stable-id>. The
// Definition mapping is kind-specific:
//   - object: {"properties": [{"name", "type"}...], "required": [...]}
//   - array:  {"items": <type-id>}
//   - enum:   {"values": [...], "ordered"?: bool}
//   - ref:    {"target": <type-id>}
//   - union:  {"members": [<type-id>...]}
type TypeDef struct {
	ID         string                 `json:"id"`
	Kind       TypeKind               `json:"kind"`
	Name       string                 `json:"name"`
	Definition map[string]interface{} `json:"definition"`
	Attrs      map[string]interface{} `json:"attrs"`
}

// Severity classifies a constraint.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Scope names the entities and types a constraint applies to. Both sets are
// sorted and deduplicated.
type Scope struct {
	Entities []string `json:"entities"`
	Types    []string `json:"types"`
}

// Constraint is a rule over the graph. ID format: c:<kind>:<stable-id>.
type Constraint struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Scope     Scope                  `json:"scope"`
	Predicate map[string]interface{} `json:"predicate"`
	Severity  Severity               `json:"severity"`
	Attrs     map[string]interface{} `json:"attrs"`
}

// Graph is the full IR emitted by a plugin, owned by the pipeline after
// execution.
type Graph struct {
	Artifact    Descriptor
	Entities    []Entity
	Edges       []Edge
	Types       []TypeDef
	Constraints []Constraint
}

// Bounds are the plugin-declared output limits. Validate enforces MaxNodes
// and MaxEdges before any downstream stage runs; MaxDepth is carried but
// not checked by Validate.
type Bounds struct {
	MaxNodes int
	MaxEdges int
	MaxDepth int
}

// DefaultBounds are generous enough for real inputs while keeping memory
// proportional to declared limits.
func DefaultBounds() Bounds {
	return Bounds{MaxNodes: 100000, MaxEdges: 200000, MaxDepth: 64}
}
