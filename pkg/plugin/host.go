// Copyright 2025 Signia Protocol
//
// Plugin Host
// Capability registry mapping artifact kinds to plugins. Each plugin is a
// pure function of the normalized input and its config; the host normalizes
// and validates every emitted graph before anything downstream sees it, and
// records the plugin identity for the manifest.

package plugin

import (
	"sort"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
)

// Config is the plugin configuration mapping. Values must fit the canonical
// value model; the config hash is part of the manifest.
type Config map[string]interface{}

// Hash computes H(signia:plugin-config:v1, canonical config JSON).
func (c Config) Hash() ([hashing.Size]byte, error) {
	v := map[string]interface{}(c)
	if v == nil {
		v = map[string]interface{}{}
	}
	b, err := canonical.Encode(v)
	if err != nil {
		return [hashing.Size]byte{}, err
	}
	return hashing.Sum(hashing.DomainPluginConfig, b), nil
}

// Plugin is the capability set every registered plugin exposes. Execute
// must be deterministic: no wall clock, locale, randomness, or network; ids
// stable across runs for the same input.
type Plugin interface {
	Name() string
	Version() string
	Supports(kind ir.ArtifactKind) bool
	Execute(tree *input.Tree, cfg Config) (*ir.Graph, error)
}

// Record identifies a plugin execution for the manifest.
type Record struct {
	Name       string
	Version    string
	ConfigHash [hashing.Size]byte
}

// Host dispatches IR construction to the plugin registered for a kind.
type Host struct {
	bounds  ir.Bounds
	plugins map[ir.ArtifactKind]Plugin
}

// NewHost creates a host enforcing the given output bounds on every plugin.
func NewHost(bounds ir.Bounds) *Host {
	return &Host{bounds: bounds, plugins: make(map[ir.ArtifactKind]Plugin)}
}

// Register binds a plugin to an artifact kind.
func (h *Host) Register(kind ir.ArtifactKind, p Plugin) error {
	if _, dup := h.plugins[kind]; dup {
		return fault.Newf(fault.Internal, "plugin already registered for kind %s", kind)
	}
	if !p.Supports(kind) {
		return fault.Newf(fault.Internal, "plugin %s does not support kind %s", p.Name(), kind)
	}
	h.plugins[kind] = p
	return nil
}

// Bounds returns the output bounds enforced on every plugin.
func (h *Host) Bounds() ir.Bounds { return h.bounds }

// Kinds lists the registered artifact kinds in sorted order.
func (h *Host) Kinds() []ir.ArtifactKind {
	out := make([]ir.ArtifactKind, 0, len(h.plugins))
	for k := range h.plugins {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve returns the plugin for a kind, or PluginUnknown.
func (h *Host) Resolve(kind ir.ArtifactKind) (Plugin, error) {
	p, ok := h.plugins[kind]
	if !ok {
		return nil, fault.New(fault.PluginUnknown, "no plugin registered for artifact kind").
			With("kind", string(kind))
	}
	return p, nil
}

// Execute runs the plugin for a kind over a normalized tree, then
// normalizes set-like fields and validates the emitted graph against the
// declared bounds. The returned graph is owned by the pipeline.
func (h *Host) Execute(tree *input.Tree, kind ir.ArtifactKind, cfg Config) (*ir.Graph, Record, error) {
	p, err := h.Resolve(kind)
	if err != nil {
		return nil, Record{}, err
	}
	cfgHash, err := cfg.Hash()
	if err != nil {
		return nil, Record{}, err
	}
	rec := Record{Name: p.Name(), Version: p.Version(), ConfigHash: cfgHash}

	g, err := p.Execute(tree, cfg)
	if err != nil {
		return nil, rec, err
	}
	ir.NormalizeSets(g)
	if err := ir.Validate(g, h.bounds); err != nil {
		return nil, rec, err
	}
	return g, rec, nil
}
