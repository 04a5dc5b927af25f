// Copyright 2025 Signia Protocol
//
// Repository Plugin
// Compiles a source tree into the IR: one module entity per recognized
// source file with a content digest, and imports edges resolved from
// relative import specifiers. Imports are line-scanned, not parsed; only
// relative specifiers that resolve to a file in the tree produce edges.

package repo

import (
	"sort"
	"strings"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
)

const (
	pluginName    = "repo"
	pluginVersion = "1.0.0"
)

var sourceLanguages = map[string]string{
	".ts":  "typescript",
	".tsx": "typescript",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".go":  "go",
	".py":  "python",
	".rs":  "rust",
	".rb":  "ruby",
	".java": "java",
}

var resolveSuffixes = []string{"", ".ts", ".tsx", ".js", ".jsx", ".mjs", "/index.ts", "/index.js"}

// Plugin compiles source repositories.
type Plugin struct{}

// New creates the repository plugin.
func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string    { return pluginName }
func (p *Plugin) Version() string { return pluginVersion }

func (p *Plugin) Supports(kind ir.ArtifactKind) bool { return kind == ir.KindRepo }

// Execute walks the normalized tree in its sorted order and emits modules
// and import edges.
func (p *Plugin) Execute(tree *input.Tree, cfg plugin.Config) (*ir.Graph, error) {
	g := &ir.Graph{
		Artifact: ir.Descriptor{
			Kind:   ir.KindRepo,
			Name:   artifactName(cfg),
			Labels: []string{},
		},
	}

	modules := make(map[string]string) // rel path -> entity id
	var sourceFiles []input.File
	for _, f := range tree.Files() {
		rel := tree.Rel(f.Path)
		lang, ok := sourceLanguages[extOf(rel)]
		if !ok {
			continue
		}
		data, err := input.NormalizeText(f.Data, tree.Policy())
		if err != nil {
			// Binary content under a source extension is not a module.
			continue
		}
		id := "ent:module:" + rel
		modules[rel] = id
		sourceFiles = append(sourceFiles, input.File{Path: f.Path, Data: data})
		g.Entities = append(g.Entities, ir.Entity{
			ID:     id,
			Kind:   "module",
			Name:   rel,
			Path:   f.Path,
			Digest: hashing.ContentDigest(data),
			Attrs: map[string]interface{}{
				"language":   lang,
				"size_bytes": int64(len(data)),
			},
			Tags: []string{},
		})
	}

	edgeSeen := make(map[string]bool)
	for _, f := range sourceFiles {
		rel := tree.Rel(f.Path)
		from := modules[rel]
		for _, spec := range importSpecs(string(f.Data)) {
			target, ok := resolveRelative(rel, spec, modules)
			if !ok {
				continue
			}
			to := modules[target]
			id := "edge:imports:" + from + ":" + to + ":0"
			if edgeSeen[id] || from == to {
				continue
			}
			edgeSeen[id] = true
			g.Edges = append(g.Edges, ir.Edge{
				ID:       id,
				Relation: "imports",
				From:     from,
				To:       to,
				Attrs:    map[string]interface{}{"specifier": spec},
			})
		}
	}

	g.Artifact.Ref = ""
	if ref, ok := cfg["ref"].(string); ok {
		g.Artifact.Ref = ref
	}
	return g, nil
}

func artifactName(cfg plugin.Config) string {
	if name, ok := cfg["name"].(string); ok && name != "" {
		return name
	}
	return "repository"
}

func extOf(rel string) string {
	i := strings.LastIndexByte(rel, '.')
	if i < 0 {
		return ""
	}
	return rel[i:]
}

// importSpecs extracts import specifiers from source text: ES module
// imports, bare side-effect imports, and CommonJS requires.
func importSpecs(src string) []string {
	var out []string
	for _, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if spec, ok := afterKeyword(line, " from "); ok && strings.HasPrefix(line, "import ") {
			out = append(out, spec)
			continue
		}
		if strings.HasPrefix(line, "import ") {
			if spec, ok := quoted(strings.TrimPrefix(line, "import ")); ok {
				out = append(out, spec)
				continue
			}
		}
		if i := strings.Index(line, "require("); i >= 0 {
			if spec, ok := quoted(line[i+len("require("):]); ok {
				out = append(out, spec)
			}
		}
	}
	sort.Strings(out)
	return out
}

func afterKeyword(line, keyword string) (string, bool) {
	i := strings.Index(line, keyword)
	if i < 0 {
		return "", false
	}
	return quoted(line[i+len(keyword):])
}

// quoted extracts the first single- or double-quoted string at the start of
// the remaining text.
func quoted(rest string) (string, bool) {
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 {
		return "", false
	}
	q := rest[0]
	if q != '\'' && q != '"' {
		return "", false
	}
	end := strings.IndexByte(rest[1:], q)
	if end < 0 {
		return "", false
	}
	return rest[1 : 1+end], true
}

// resolveRelative maps a relative specifier from a module to another module
// in the tree, trying the conventional suffix list.
func resolveRelative(fromRel, spec string, modules map[string]string) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return "", false
	}
	dir := ""
	if i := strings.LastIndexByte(fromRel, '/'); i >= 0 {
		dir = fromRel[:i]
	}
	base := cleanJoin(dir, spec)
	for _, suffix := range resolveSuffixes {
		candidate := base + suffix
		if _, ok := modules[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}

// cleanJoin joins and lexically cleans a slash path without touching the
// filesystem.
func cleanJoin(dir, spec string) string {
	parts := []string{}
	if dir != "" {
		parts = strings.Split(dir, "/")
	}
	for _, seg := range strings.Split(spec, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/")
}
