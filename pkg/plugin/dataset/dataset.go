// Copyright 2025 Signia Protocol
//
// Dataset Plugin
// Compiles a delimited dataset into the IR: one column entity per header
// field with an inferred type definition, and a row-shape constraint over
// the whole column set. Values are never stored; only shapes and counts.

package dataset

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
	"strings"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const (
	pluginName    = "dataset"
	pluginVersion = "1.0.0"
)

// Plugin compiles delimited datasets.
type Plugin struct{}

// New creates the dataset plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) Supports(kind ir.ArtifactKind) bool { return kind == ir.KindDataset }

func (p *Plugin) Execute(tree *input.Tree, cfg plugin.Config) (*ir.Graph, error) {
	files := tree.Files()
	if len(files) == 0 {
		return nil, fault.New(fault.IrInvalid, "dataset input is empty").
			With("rule", "required_field_missing").With("locus", "input")
	}
	data, err := input.NormalizeText(files[0].Data, tree.Policy())
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		return nil, fault.New(fault.InputEncodingInvalid, "document is not a valid delimited dataset").
			With("detail", "parse_failed")
	}

	header := records[0]
	rows := records[1:]

	g := &ir.Graph{
		Artifact: ir.Descriptor{
			Kind:   ir.KindDataset,
			Name:   tree.Rel(files[0].Path),
			Labels: []string{},
		},
	}

	var scopeEntities, scopeTypes []string
	for i, rawName := range header {
		name := strings.TrimSpace(rawName)
		if name == "" {
			name = "column_" + strconv.Itoa(i)
		}
		kind := inferColumn(rows, i)
		typeRef := "type:" + string(kind) + ":column:" + name
		entID := "ent:column:" + name

		g.Entities = append(g.Entities, ir.Entity{
			ID:   entID,
			Kind: "column",
			Name: name,
			Attrs: map[string]interface{}{
				"index": int64(i),
				"type":  typeRef,
			},
			Tags: []string{},
		})
		g.Types = append(g.Types, ir.TypeDef{
			ID:         typeRef,
			Kind:       kind,
			Name:       name,
			Definition: map[string]interface{}{},
			Attrs:      map[string]interface{}{},
		})
		scopeEntities = append(scopeEntities, entID)
		scopeTypes = append(scopeTypes, typeRef)
	}

	sort.Strings(scopeEntities)
	sort.Strings(scopeTypes)
	g.Constraints = append(g.Constraints, ir.Constraint{
		ID:    "c:row_shape:rows",
		Kind:  "row_shape",
		Scope: ir.Scope{Entities: scopeEntities, Types: scopeTypes},
		Predicate: map[string]interface{}{
			"column_count": int64(len(header)),
			"row_count":    int64(len(rows)),
		},
		Severity: ir.SeverityError,
		Attrs:    map[string]interface{}{},
	})
	return g, nil
}

// inferColumn finds the narrowest type that admits every value in a column.
// Empty cells are ignored; an empty column is a string column.
func inferColumn(rows [][]string, index int) ir.TypeKind {
	isInteger, isBoolean, isNumber := true, true, true
	sampled := false
	for _, row := range rows {
		if index >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[index])
		if cell == "" {
			continue
		}
		sampled = true
		if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
			isInteger = false
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			isNumber = false
		}
		switch strings.ToLower(cell) {
		case "true", "false":
		default:
			isBoolean = false
		}
	}
	switch {
	case !sampled:
		return ir.TypeString
	case isBoolean:
		return ir.TypeBoolean
	case isInteger:
		return ir.TypeInteger
	case isNumber:
		return ir.TypeNumber
	default:
		return ir.TypeString
	}
}
