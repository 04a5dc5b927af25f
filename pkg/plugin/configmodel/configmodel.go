// Copyright 2025 Signia Protocol
//
// Config Model Plugin
// Compiles a YAML or JSON configuration model into the IR: one setting
// entity per leaf path with the normalized value and its inferred shape.
// Small closed string sets become enum types. Floats are re-expressed as
// canonical decimal strings before they reach a hashed domain.

package configmodel

import (
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const (
	pluginName    = "configmodel"
	pluginVersion = "1.0.0"
)

// enumLimit is the largest string set inferred as a closed enum.
const enumLimit = 8

// Plugin compiles configuration models.
type Plugin struct{}

// New creates the config model plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) Supports(kind ir.ArtifactKind) bool { return kind == ir.KindConfig }

func (p *Plugin) Execute(tree *input.Tree, cfg plugin.Config) (*ir.Graph, error) {
	files := tree.Files()
	if len(files) == 0 {
		return nil, fault.New(fault.IrInvalid, "config input is empty").
			With("rule", "required_field_missing").With("locus", "input")
	}
	data, err := input.NormalizeText(files[0].Data, tree.Policy())
	if err != nil {
		return nil, err
	}

	var root interface{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fault.New(fault.InputEncodingInvalid, "document is not valid YAML or JSON").
			With("detail", "parse_failed")
	}

	g := &ir.Graph{
		Artifact: ir.Descriptor{
			Kind:   ir.KindConfig,
			Name:   tree.Rel(files[0].Path),
			Labels: []string{},
		},
	}
	walk(g, "", root)

	sort.SliceStable(g.Entities, func(i, j int) bool { return g.Entities[i].ID < g.Entities[j].ID })
	return g, nil
}

// walk descends the value tree emitting one setting entity per leaf. Map
// keys are visited in sorted order so entity order never depends on parse
// order.
func walk(g *ir.Graph, path string, v interface{}) {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(g, childPath(path, k), vv[k])
		}
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			if s, ok := k.(string); ok {
				keys = append(keys, s)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			walk(g, childPath(path, k), vv[k])
		}
	case []interface{}:
		if values, ok := closedStringSet(vv); ok {
			leafWithEnum(g, path, values)
			return
		}
		for i, item := range vv {
			walk(g, childPath(path, strconv.Itoa(i)), item)
		}
	default:
		leaf(g, path, v)
	}
}

func childPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func leaf(g *ir.Graph, path string, v interface{}) {
	if path == "" {
		path = "value"
	}
	value, shape := normalizeLeaf(v)
	g.Entities = append(g.Entities, ir.Entity{
		ID:   "ent:setting:" + path,
		Kind: "setting",
		Name: path,
		Attrs: map[string]interface{}{
			"value":      value,
			"value_kind": shape,
		},
		Tags: []string{},
	})
}

func leafWithEnum(g *ir.Graph, path string, values []string) {
	if path == "" {
		path = "value"
	}
	sort.Strings(values)
	g.Entities = append(g.Entities, ir.Entity{
		ID:   "ent:setting:" + path,
		Kind: "setting",
		Name: path,
		Attrs: map[string]interface{}{
			"value_kind": "enum",
			"type":       "type:enum:" + path,
		},
		Tags: []string{},
	})
	vals := make([]interface{}, len(values))
	for i, s := range values {
		vals[i] = s
	}
	g.Types = append(g.Types, ir.TypeDef{
		ID:         "type:enum:" + path,
		Kind:       ir.TypeEnum,
		Name:       path,
		Definition: map[string]interface{}{"values": vals},
		Attrs:      map[string]interface{}{},
	})
}

// closedStringSet reports whether a list is a small set of distinct strings.
func closedStringSet(items []interface{}) ([]string, bool) {
	if len(items) == 0 || len(items) > enumLimit {
		return nil, false
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok || seen[s] {
			return nil, false
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, true
}

// normalizeLeaf converts a parsed scalar into the canonical value model.
// Non-integer numbers become canonical decimal strings.
func normalizeLeaf(v interface{}) (interface{}, string) {
	switch vv := v.(type) {
	case nil:
		return nil, "null"
	case bool:
		return vv, "boolean"
	case int:
		return int64(vv), "integer"
	case int64:
		return vv, "integer"
	case uint64:
		return vv, "integer"
	case float64:
		if vv == float64(int64(vv)) {
			return int64(vv), "integer"
		}
		return strconv.FormatFloat(vv, 'f', -1, 64), "number"
	case string:
		return vv, "string"
	default:
		return "", "string"
	}
}
