// Copyright 2025 Signia Protocol
//
// Workflow Plugin
// Compiles a YAML workflow graph into the IR: one step entity per declared
// step, depends_on edges between steps, parameter object types per step,
// and an acyclicity constraint over the whole step set. Remote step sources
// are gated by the network policy.

package workflow

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const (
	pluginName    = "workflow"
	pluginVersion = "1.0.0"
)

type workflowFile struct {
	Name  string     `yaml:"name"`
	Steps []stepSpec `yaml:"steps"`
}

type stepSpec struct {
	ID           string                 `yaml:"id"`
	Run          string                 `yaml:"run"`
	Uses         string                 `yaml:"uses"`
	Source       string                 `yaml:"source"`
	PinnedSHA256 string                 `yaml:"pinned_sha256"`
	DependsOn    []string               `yaml:"depends_on"`
	Params       map[string]interface{} `yaml:"params"`
}

// Plugin compiles workflow graphs.
type Plugin struct{}

// New creates the workflow plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) Supports(kind ir.ArtifactKind) bool { return kind == ir.KindWorkflow }

func (p *Plugin) Execute(tree *input.Tree, cfg plugin.Config) (*ir.Graph, error) {
	files := tree.Files()
	if len(files) == 0 {
		return nil, fault.New(fault.IrInvalid, "workflow input is empty").
			With("rule", "required_field_missing").With("locus", "input")
	}
	data, err := input.NormalizeText(files[0].Data, tree.Policy())
	if err != nil {
		return nil, err
	}

	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fault.New(fault.InputEncodingInvalid, "document is not a valid workflow").
			With("detail", "parse_failed")
	}
	if wf.Name == "" {
		wf.Name = tree.Rel(files[0].Path)
	}

	g := &ir.Graph{
		Artifact: ir.Descriptor{Kind: ir.KindWorkflow, Name: wf.Name, Labels: []string{}},
	}

	stepIDs := make(map[string]string, len(wf.Steps))
	var scope []string
	for _, step := range wf.Steps {
		if step.ID == "" {
			return nil, fault.New(fault.IrInvalid, "workflow step is missing an id").
				With("rule", "required_field_missing").With("locus", "steps")
		}
		id := "ent:step:" + step.ID
		if _, dup := stepIDs[step.ID]; dup {
			return nil, fault.New(fault.IrInvalid, "duplicate workflow step id").
				With("rule", "duplicate_entity_id").With("locus", id)
		}
		stepIDs[step.ID] = id
		scope = append(scope, id)

		attrs := map[string]interface{}{}
		if step.Run != "" {
			attrs["run"] = step.Run
		}
		if step.Uses != "" {
			attrs["uses"] = step.Uses
		}
		if step.Source != "" {
			if isRemote(step.Source) {
				if err := input.CheckRemoteRef(tree.Policy(), step.Source, step.PinnedSHA256); err != nil {
					return nil, err
				}
				attrs["pinned_sha256"] = step.PinnedSHA256
			}
			attrs["source"] = step.Source
		}
		g.Entities = append(g.Entities, ir.Entity{
			ID:    id,
			Kind:  "step",
			Name:  step.ID,
			Attrs: attrs,
			Tags:  []string{},
		})

		if len(step.Params) > 0 {
			g.Types = append(g.Types, paramsType(step.ID, step.Params))
		}
	}

	edgeSeen := make(map[string]bool)
	for _, step := range wf.Steps {
		from := stepIDs[step.ID]
		deps := append([]string(nil), step.DependsOn...)
		sort.Strings(deps)
		for _, dep := range deps {
			to, ok := stepIDs[dep]
			if !ok {
				return nil, fault.New(fault.IrInvalid, "step depends on an unknown step").
					With("rule", "edge_endpoint_missing").With("locus", from)
			}
			id := "edge:depends_on:" + from + ":" + to + ":0"
			if edgeSeen[id] {
				continue
			}
			edgeSeen[id] = true
			g.Edges = append(g.Edges, ir.Edge{
				ID:       id,
				Relation: "depends_on",
				From:     from,
				To:       to,
				Attrs:    map[string]interface{}{},
			})
		}
	}

	if len(scope) > 0 {
		sort.Strings(scope)
		g.Constraints = append(g.Constraints, ir.Constraint{
			ID:        "c:acyclic:steps",
			Kind:      "acyclic",
			Scope:     ir.Scope{Entities: scope, Types: []string{}},
			Predicate: map[string]interface{}{"relation": "depends_on"},
			Severity:  ir.SeverityError,
			Attrs:     map[string]interface{}{},
		})
	}
	return g, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// paramsType infers an object type from a step's parameter mapping.
func paramsType(stepID string, params map[string]interface{}) ir.TypeDef {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make([]interface{}, 0, len(names))
	for _, name := range names {
		props = append(props, map[string]interface{}{
			"name":  name,
			"shape": shapeOf(params[name]),
		})
	}
	return ir.TypeDef{
		ID:         "type:object:step:" + stepID + ":params",
		Kind:       ir.TypeObject,
		Name:       stepID + " params",
		Definition: map[string]interface{}{"properties": props},
		Attrs:      map[string]interface{}{},
	}
}

func shapeOf(v interface{}) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case int, int64, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case string:
		return "string"
	case nil:
		return "null"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "string"
	}
}
