// Copyright 2025 Signia Protocol
//
// OpenAPI Plugin
// Compiles an OpenAPI 3 document into the IR: one endpoint entity per
// (path, method), a type definition per named component schema, references
// edges from endpoints to the component types their bodies name, and
// required-field constraints for object schemas.

package openapi

import (
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const (
	pluginName    = "openapi"
	pluginVersion = "1.0.0"
)

// Plugin compiles OpenAPI 3 documents.
type Plugin struct{}

// New creates the OpenAPI plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) Supports(kind ir.ArtifactKind) bool { return kind == ir.KindOpenAPI }

// Execute parses the single document in the tree and emits the graph.
func (p *Plugin) Execute(tree *input.Tree, cfg plugin.Config) (*ir.Graph, error) {
	files := tree.Files()
	if len(files) == 0 {
		return nil, fault.New(fault.IrInvalid, "openapi input is empty").
			With("rule", "required_field_missing").With("locus", "input")
	}
	doc := files[0]
	data, err := input.NormalizeText(doc.Data, tree.Policy())
	if err != nil {
		return nil, err
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fault.New(fault.InputEncodingInvalid, "document is not a valid OpenAPI 3 specification").
			With("detail", "parse_failed")
	}

	g := &ir.Graph{Artifact: describe(spec, tree, doc)}

	kinds := componentKinds(spec)
	buildEndpoints(g, spec, kinds)
	if err := buildTypes(g, spec, kinds); err != nil {
		return nil, err
	}
	return g, nil
}

func describe(spec *openapi3.T, tree *input.Tree, doc input.File) ir.Descriptor {
	name := tree.Rel(doc.Path)
	ref := ""
	if spec.Info != nil {
		if spec.Info.Title != "" {
			name = spec.Info.Title
		}
		ref = spec.Info.Version
	}
	return ir.Descriptor{Kind: ir.KindOpenAPI, Name: name, Ref: ref, Labels: []string{}}
}

// componentKinds maps every named component schema to its IR type kind, so
// refs and unions can be resolved to full type ids in a single later pass.
func componentKinds(spec *openapi3.T) map[string]ir.TypeKind {
	out := make(map[string]ir.TypeKind)
	if spec.Components == nil {
		return out
	}
	for name, ref := range spec.Components.Schemas {
		out[name] = schemaKind(ref)
	}
	return out
}

func schemaKind(ref *openapi3.SchemaRef) ir.TypeKind {
	if ref == nil {
		return ir.TypeNull
	}
	if target := refName(ref.Ref); target != "" {
		return ir.TypeRef
	}
	s := ref.Value
	if s == nil {
		return ir.TypeNull
	}
	if len(s.Enum) > 0 {
		return ir.TypeEnum
	}
	if len(s.OneOf) > 0 || len(s.AnyOf) > 0 {
		return ir.TypeUnion
	}
	switch {
	case s.Type.Is(openapi3.TypeObject):
		return ir.TypeObject
	case s.Type.Is(openapi3.TypeArray):
		return ir.TypeArray
	case s.Type.Is(openapi3.TypeString):
		return ir.TypeString
	case s.Type.Is(openapi3.TypeInteger):
		return ir.TypeInteger
	case s.Type.Is(openapi3.TypeNumber):
		return ir.TypeNumber
	case s.Type.Is(openapi3.TypeBoolean):
		return ir.TypeBoolean
	case s.Type.Is(openapi3.TypeNull):
		return ir.TypeNull
	default:
		return ir.TypeObject
	}
}

func buildEndpoints(g *ir.Graph, spec *openapi3.T, kinds map[string]ir.TypeKind) {
	if spec.Paths == nil {
		return
	}
	pathMap := spec.Paths.Map()
	routes := make([]string, 0, len(pathMap))
	for route := range pathMap {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	edgeSeen := make(map[string]bool)
	for _, route := range routes {
		item := pathMap[route]
		if item == nil {
			continue
		}
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			op := ops[method]
			id := "ent:endpoint:" + method + "_" + route
			tags := append([]string{"public"}, op.Tags...)
			g.Entities = append(g.Entities, ir.Entity{
				ID:   id,
				Kind: "endpoint",
				Name: method + " " + route,
				Attrs: map[string]interface{}{
					"method": method,
					"route":  route,
				},
				Tags: tags,
			})
			for _, target := range referencedComponents(op) {
				kind, ok := kinds[target]
				if !ok {
					continue
				}
				to := typeID(kind, target)
				eid := "edge:references:" + id + ":" + to + ":0"
				if edgeSeen[eid] {
					continue
				}
				edgeSeen[eid] = true
				g.Edges = append(g.Edges, ir.Edge{
					ID:       eid,
					Relation: "references",
					From:     id,
					To:       to,
					Attrs:    map[string]interface{}{},
				})
			}
		}
	}
}

// referencedComponents collects component names reachable from an
// operation's request body and responses, sorted and deduplicated.
func referencedComponents(op *openapi3.Operation) []string {
	seen := make(map[string]bool)
	collect := func(media map[string]*openapi3.MediaType) {
		for _, mt := range media {
			if mt == nil || mt.Schema == nil {
				continue
			}
			if name := refName(mt.Schema.Ref); name != "" {
				seen[name] = true
			}
		}
	}
	if op.RequestBody != nil && op.RequestBody.Value != nil {
		collect(op.RequestBody.Value.Content)
	}
	if op.Responses != nil {
		for _, resp := range op.Responses.Map() {
			if resp != nil && resp.Value != nil {
				collect(resp.Value.Content)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func buildTypes(g *ir.Graph, spec *openapi3.T, kinds map[string]ir.TypeKind) error {
	if spec.Components == nil {
		return nil
	}
	names := make([]string, 0, len(spec.Components.Schemas))
	for name := range spec.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := spec.Components.Schemas[name]
		kind := kinds[name]
		def, required := definitionFor(ref, kind, kinds)
		g.Types = append(g.Types, ir.TypeDef{
			ID:         typeID(kind, name),
			Kind:       kind,
			Name:       name,
			Definition: def,
			Attrs:      map[string]interface{}{},
		})
		if kind == ir.TypeObject && len(required) > 0 {
			sort.Strings(required)
			g.Constraints = append(g.Constraints, ir.Constraint{
				ID:   "c:required_field:" + name,
				Kind: "required_field",
				Scope: ir.Scope{
					Entities: []string{},
					Types:    []string{typeID(kind, name)},
				},
				Predicate: map[string]interface{}{"required": toValues(required)},
				Severity:  ir.SeverityError,
				Attrs:     map[string]interface{}{},
			})
		}
	}
	return nil
}

func definitionFor(ref *openapi3.SchemaRef, kind ir.TypeKind, kinds map[string]ir.TypeKind) (map[string]interface{}, []string) {
	def := map[string]interface{}{}
	s := ref.Value
	switch kind {
	case ir.TypeRef:
		target := refName(ref.Ref)
		if tk, ok := kinds[target]; ok {
			def["target"] = typeID(tk, target)
		}
	case ir.TypeEnum:
		values := make([]string, 0, len(s.Enum))
		for _, v := range s.Enum {
			values = append(values, enumValue(v))
		}
		def["values"] = toValues(values)
	case ir.TypeUnion:
		members := make([]string, 0)
		for _, m := range append(append([]*openapi3.SchemaRef{}, s.OneOf...), s.AnyOf...) {
			if name := refName(m.Ref); name != "" {
				if tk, ok := kinds[name]; ok {
					members = append(members, typeID(tk, name))
				}
			}
		}
		sort.Strings(members)
		def["members"] = toValues(members)
	case ir.TypeArray:
		if s.Items != nil {
			if name := refName(s.Items.Ref); name != "" {
				if tk, ok := kinds[name]; ok {
					def["items"] = typeID(tk, name)
				}
			} else {
				def["items_shape"] = string(schemaKind(s.Items))
			}
		}
	case ir.TypeObject:
		propNames := make([]string, 0, len(s.Properties))
		for pn := range s.Properties {
			propNames = append(propNames, pn)
		}
		sort.Strings(propNames)
		props := make([]interface{}, 0, len(propNames))
		for _, pn := range propNames {
			pref := s.Properties[pn]
			prop := map[string]interface{}{
				"name":  pn,
				"shape": string(schemaKind(pref)),
			}
			if name := refName(pref.Ref); name != "" {
				if tk, ok := kinds[name]; ok {
					prop["type"] = typeID(tk, name)
				}
			}
			props = append(props, prop)
		}
		def["properties"] = props
		required := append([]string(nil), s.Required...)
		return def, required
	}
	return def, nil
}

func typeID(kind ir.TypeKind, name string) string {
	return "type:" + string(kind) + ":" + name
}

func refName(ref string) string {
	const prefix = "#/components/schemas/"
	if strings.HasPrefix(ref, prefix) {
		return ref[len(prefix):]
	}
	return ""
}

// enumValue renders an enum member as a canonical string. Numeric members
// become canonical decimal strings so floats never enter a hashed domain.
func enumValue(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(vv, 10)
	case nil:
		return "null"
	default:
		return ""
	}
}

func toValues(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, s := range values {
		out[i] = s
	}
	return out
}

