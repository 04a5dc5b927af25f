// Copyright 2025 Signia Protocol
//
// IR Validator
// Structural invariant checks over a plugin-emitted graph, in documented
// order. The first violation aborts with IrInvalid{rule, locus}.

package ir

import (
	"sort"
	"strconv"
	"strings"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// Rule names carried in IrInvalid details.
const (
	RuleRequiredField       = "required_field_missing"
	RuleEnumInvalid         = "enum_invalid"
	RuleIDFormat            = "id_format"
	RuleDuplicateEntityID   = "duplicate_entity_id"
	RuleEdgeEndpointMissing = "edge_endpoint_missing"
	RuleDuplicateTypeID     = "duplicate_type_id"
	RuleDuplicateConstraintID = "duplicate_constraint_id"
	RuleTypeRefUnresolved   = "type_ref_unresolved"
	RuleScopeUnknownID      = "scope_unknown_id"
	RuleSetUnsorted         = "set_unsorted_or_duplicate"
	RuleAttrForbidden       = "attr_value_forbidden"
)

func invalid(rule, locus, message string) *fault.Fault {
	return fault.New(fault.IrInvalid, message).With("rule", rule).With("locus", locus)
}

// Validate checks every invariant of the IR in order and enforces the
// plugin-declared bounds. The graph is not mutated; callers wanting the
// sorted-set guarantee to hold for arbitrary plugin output should run
// NormalizeSets first.
func Validate(g *Graph, bounds Bounds) error {
	if err := validateBounds(g, bounds); err != nil {
		return err
	}
	if err := validateArtifact(&g.Artifact); err != nil {
		return err
	}

	entityIDs := make(map[string]bool, len(g.Entities))
	for i := range g.Entities {
		e := &g.Entities[i]
		if err := validateEntity(e); err != nil {
			return err
		}
		if entityIDs[e.ID] {
			return invalid(RuleDuplicateEntityID, e.ID, "entity id is not unique")
		}
		entityIDs[e.ID] = true
	}

	for i := range g.Edges {
		if err := validateEdge(&g.Edges[i], entityIDs); err != nil {
			return err
		}
	}

	typeIDs := make(map[string]bool, len(g.Types))
	for i := range g.Types {
		td := &g.Types[i]
		if err := validateType(td); err != nil {
			return err
		}
		if typeIDs[td.ID] {
			return invalid(RuleDuplicateTypeID, td.ID, "type id is not unique")
		}
		typeIDs[td.ID] = true
	}
	for i := range g.Types {
		if err := validateTypeRefs(&g.Types[i], typeIDs); err != nil {
			return err
		}
	}

	constraintIDs := make(map[string]bool, len(g.Constraints))
	for i := range g.Constraints {
		c := &g.Constraints[i]
		if err := validateConstraint(c, entityIDs, typeIDs); err != nil {
			return err
		}
		if constraintIDs[c.ID] {
			return invalid(RuleDuplicateConstraintID, c.ID, "constraint id is not unique")
		}
		constraintIDs[c.ID] = true
	}
	return nil
}

func validateBounds(g *Graph, b Bounds) error {
	if b.MaxNodes > 0 && len(g.Entities) > b.MaxNodes {
		return fault.New(fault.PluginBoundsExceeded, "entity count exceeds declared bound").
			With("limit", "max_nodes").
			With("observed", strconv.Itoa(len(g.Entities))).
			With("bound", strconv.Itoa(b.MaxNodes))
	}
	if b.MaxEdges > 0 && len(g.Edges) > b.MaxEdges {
		return fault.New(fault.PluginBoundsExceeded, "edge count exceeds declared bound").
			With("limit", "max_edges").
			With("observed", strconv.Itoa(len(g.Edges))).
			With("bound", strconv.Itoa(b.MaxEdges))
	}
	return nil
}

func validateArtifact(d *Descriptor) error {
	if d.Name == "" {
		return invalid(RuleRequiredField, "artifact.name", "artifact name is required")
	}
	valid := false
	for _, k := range ArtifactKinds {
		if d.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return invalid(RuleEnumInvalid, "artifact.kind", "unknown artifact kind "+string(d.Kind))
	}
	return validateSet(d.Labels, "artifact.labels")
}

func validateEntity(e *Entity) error {
	if e.ID == "" || e.Kind == "" || e.Name == "" {
		return invalid(RuleRequiredField, e.ID, "entity requires id, kind, and name")
	}
	prefix := "ent:" + e.Kind + ":"
	if !strings.HasPrefix(e.ID, prefix) || len(e.ID) == len(prefix) {
		return invalid(RuleIDFormat, e.ID, "entity id must be ent:<kind>:<stable-id>")
	}
	if err := validateSet(e.Tags, e.ID+".tags"); err != nil {
		return err
	}
	return validateAttrs(e.Attrs, e.ID+".attrs")
}

func validateEdge(e *Edge, entityIDs map[string]bool) error {
	if e.ID == "" || e.Relation == "" || e.From == "" || e.To == "" {
		return invalid(RuleRequiredField, e.ID, "edge requires id, relation, from, and to")
	}
	prefix := "edge:" + e.Relation + ":" + e.From + ":" + e.To + ":"
	if !strings.HasPrefix(e.ID, prefix) || len(e.ID) == len(prefix) {
		return invalid(RuleIDFormat, e.ID, "edge id must be edge:<relation>:<from>:<to>:<tiebreaker>")
	}
	if !entityIDs[e.From] {
		return invalid(RuleEdgeEndpointMissing, e.ID, "edge from refers to unknown entity "+e.From)
	}
	if !entityIDs[e.To] {
		return invalid(RuleEdgeEndpointMissing, e.ID, "edge to refers to unknown entity "+e.To)
	}
	return validateAttrs(e.Attrs, e.ID+".attrs")
}

func validateType(td *TypeDef) error {
	if td.ID == "" || td.Name == "" {
		return invalid(RuleRequiredField, td.ID, "type requires id and name")
	}
	if !typeKinds[td.Kind] {
		return invalid(RuleEnumInvalid, td.ID, "unknown type kind "+string(td.Kind))
	}
	prefix := "type:" + string(td.Kind) + ":"
	if !strings.HasPrefix(td.ID, prefix) || len(td.ID) == len(prefix) {
		return invalid(RuleIDFormat, td.ID, "type id must be type:<kind>:<stable-id>")
	}
	if td.Kind == TypeEnum {
		values, ok := stringSlice(td.Definition["values"])
		if !ok {
			return invalid(RuleRequiredField, td.ID, "enum definition requires values")
		}
		ordered, _ := td.Definition["ordered"].(bool)
		if !ordered {
			if err := validateSet(values, td.ID+".values"); err != nil {
				return err
			}
		} else if hasDuplicates(values) {
			return invalid(RuleSetUnsorted, td.ID+".values", "ordered enum values contain duplicates")
		}
	}
	if err := validateAttrs(td.Definition, td.ID+".definition"); err != nil {
		return err
	}
	return validateAttrs(td.Attrs, td.ID+".attrs")
}

func validateTypeRefs(td *TypeDef, typeIDs map[string]bool) error {
	check := func(id string) error {
		if !typeIDs[id] {
			return invalid(RuleTypeRefUnresolved, td.ID, "type reference to unknown type "+id)
		}
		return nil
	}
	switch td.Kind {
	case TypeRef:
		target, ok := td.Definition["target"].(string)
		if !ok || target == "" {
			return invalid(RuleRequiredField, td.ID, "ref definition requires target")
		}
		return check(target)
	case TypeUnion:
		members, ok := stringSlice(td.Definition["members"])
		if !ok || len(members) == 0 {
			return invalid(RuleRequiredField, td.ID, "union definition requires members")
		}
		for _, m := range members {
			if err := check(m); err != nil {
				return err
			}
		}
	case TypeArray:
		items, ok := td.Definition["items"].(string)
		if !ok || items == "" {
			return invalid(RuleRequiredField, td.ID, "array definition requires items")
		}
		return check(items)
	case TypeObject:
		props, _ := td.Definition["properties"].([]interface{})
		for _, p := range props {
			prop, ok := p.(map[string]interface{})
			if !ok {
				return invalid(RuleRequiredField, td.ID, "object property must be a mapping")
			}
			if _, ok := prop["name"].(string); !ok {
				return invalid(RuleRequiredField, td.ID, "object property requires name")
			}
			if ref, ok := prop["type"].(string); ok && ref != "" {
				if err := check(ref); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateConstraint(c *Constraint, entityIDs, typeIDs map[string]bool) error {
	if c.ID == "" || c.Kind == "" {
		return invalid(RuleRequiredField, c.ID, "constraint requires id and kind")
	}
	prefix := "c:" + c.Kind + ":"
	if !strings.HasPrefix(c.ID, prefix) || len(c.ID) == len(prefix) {
		return invalid(RuleIDFormat, c.ID, "constraint id must be c:<kind>:<stable-id>")
	}
	switch c.Severity {
	case SeverityInfo, SeverityWarn, SeverityError:
	default:
		return invalid(RuleEnumInvalid, c.ID, "unknown severity "+string(c.Severity))
	}
	if err := validateSet(c.Scope.Entities, c.ID+".scope.entities"); err != nil {
		return err
	}
	if err := validateSet(c.Scope.Types, c.ID+".scope.types"); err != nil {
		return err
	}
	for _, id := range c.Scope.Entities {
		if !entityIDs[id] {
			return invalid(RuleScopeUnknownID, c.ID, "scope refers to unknown entity "+id)
		}
	}
	for _, id := range c.Scope.Types {
		if !typeIDs[id] {
			return invalid(RuleScopeUnknownID, c.ID, "scope refers to unknown type "+id)
		}
	}
	if err := validateAttrs(c.Predicate, c.ID+".predicate"); err != nil {
		return err
	}
	return validateAttrs(c.Attrs, c.ID+".attrs")
}

// validateSet requires strictly ascending code-point order, which also rules
// out duplicates.
func validateSet(values []string, locus string) error {
	for i := 1; i < len(values); i++ {
		if strings.Compare(values[i-1], values[i]) >= 0 {
			return invalid(RuleSetUnsorted, locus, "set is unsorted or contains duplicates")
		}
	}
	return nil
}

// validateAttrs walks an attribute tree rejecting floats and value shapes
// outside the canonical model.
func validateAttrs(v interface{}, locus string) error {
	switch vv := v.(type) {
	case nil, bool, int, int64, uint64, string:
		return nil
	case float32, float64:
		return invalid(RuleAttrForbidden, locus, "float values are forbidden in hashed domains")
	case []interface{}:
		for _, item := range vv {
			if err := validateAttrs(item, locus); err != nil {
				return err
			}
		}
		return nil
	case map[string]interface{}:
		for _, item := range vv {
			if err := validateAttrs(item, locus); err != nil {
				return err
			}
		}
		return nil
	case []string:
		return nil
	default:
		return invalid(RuleAttrForbidden, locus, "unsupported attribute value shape")
	}
}

// NormalizeSets sorts and deduplicates every set-like field in place:
// artifact labels, entity tags, constraint scopes, and unordered enum
// values. Plugins may emit sets in any order; the pipeline normalizes them
// before validation.
func NormalizeSets(g *Graph) {
	g.Artifact.Labels = sortedSet(g.Artifact.Labels)
	for i := range g.Entities {
		g.Entities[i].Tags = sortedSet(g.Entities[i].Tags)
	}
	for i := range g.Constraints {
		g.Constraints[i].Scope.Entities = sortedSet(g.Constraints[i].Scope.Entities)
		g.Constraints[i].Scope.Types = sortedSet(g.Constraints[i].Scope.Types)
	}
	for i := range g.Types {
		td := &g.Types[i]
		if td.Kind != TypeEnum {
			continue
		}
		values, ok := stringSlice(td.Definition["values"])
		if !ok {
			continue
		}
		ordered, _ := td.Definition["ordered"].(bool)
		if ordered {
			values = dedupePreserving(values)
		} else {
			values = sortedSet(values)
		}
		out := make([]interface{}, len(values))
		for j, s := range values {
			out[j] = s
		}
		td.Definition["values"] = out
	}
}

func sortedSet(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	dst := out[:1]
	for _, v := range out[1:] {
		if v != dst[len(dst)-1] {
			dst = append(dst, v)
		}
	}
	return dst
}

func dedupePreserving(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func hasDuplicates(values []string) bool {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return true
		}
		seen[v] = true
	}
	return false
}

func stringSlice(v interface{}) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}
