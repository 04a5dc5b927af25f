// Copyright 2025 Signia Protocol
//
// Compilation Pipeline
// Single-threaded cooperative pipeline for one compilation job: normalize,
// dispatch, validate, canonicalize, commit, assemble. The timeout clock and
// the cancellation signal are observed only at the yield points between
// stages; no partial bundle is ever emitted.

package pipeline

import (
	"context"
	"time"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/schema"
)

// Yield point names, recorded in timeout and cancellation faults.
const (
	yieldBeforePlugin    = "before_plugin"
	yieldAfterPlugin     = "after_plugin"
	yieldAfterValidation = "after_ir_validation"
	yieldAfterCanonical  = "after_canonicalization"
	yieldAfterProof      = "after_proof_construction"
)

// Compiler orchestrates compilations over a plugin host.
type Compiler struct {
	host *plugin.Host
}

// New creates a compiler.
func New(host *plugin.Host) *Compiler {
	return &Compiler{host: host}
}

// Host returns the plugin host.
func (c *Compiler) Host() *plugin.Host { return c.host }

// Compile runs the full pipeline over a normalized tree and returns the
// assembled bundle. The tree's policy supplies the timeout budget; the
// context supplies cancellation.
func (c *Compiler) Compile(ctx context.Context, tree *input.Tree, kind ir.ArtifactKind, cfg plugin.Config, opts bundle.Options) (*bundle.Bundle, error) {
	pol := tree.Policy()
	start := time.Now()
	budget := time.Duration(pol.TimeoutMS) * time.Millisecond

	yield := func(point string) error {
		select {
		case <-ctx.Done():
			return fault.New(fault.JobCanceled, "compilation canceled").
				With("yield_point", point)
		default:
		}
		if budget > 0 && time.Since(start) > budget {
			return fault.New(fault.JobTimeout, "compilation exceeded its time budget").
				With("yield_point", point)
		}
		return nil
	}

	if err := yield(yieldBeforePlugin); err != nil {
		return nil, err
	}
	p, err := c.host.Resolve(kind)
	if err != nil {
		return nil, err
	}
	cfgHash, err := cfg.Hash()
	if err != nil {
		return nil, err
	}
	rec := plugin.Record{Name: p.Name(), Version: p.Version(), ConfigHash: cfgHash}

	g, err := p.Execute(tree, cfg)
	if err != nil {
		return nil, err
	}
	if err := yield(yieldAfterPlugin); err != nil {
		return nil, err
	}

	ir.NormalizeSets(g)
	if err := ir.Validate(g, c.host.Bounds()); err != nil {
		return nil, err
	}
	if err := yield(yieldAfterValidation); err != nil {
		return nil, err
	}

	doc, err := schema.Canonicalize(g)
	if err != nil {
		return nil, err
	}
	if err := yield(yieldAfterCanonical); err != nil {
		return nil, err
	}

	b, err := bundle.Assemble(doc, rec, pol, opts)
	if err != nil {
		return nil, err
	}
	if err := yield(yieldAfterProof); err != nil {
		return nil, err
	}
	return b, nil
}

// CompileBytes normalizes raw input bytes (archive or single file) under
// the policy and compiles them.
func (c *Compiler) CompileBytes(ctx context.Context, name string, data []byte, kind ir.ArtifactKind, cfg plugin.Config, pol input.Policy, opts bundle.Options) (*bundle.Bundle, error) {
	var tree *input.Tree
	var err error
	if looksLikeArchive(data) {
		tree, err = input.FromArchive(data, pol)
	} else {
		tree, err = input.FromFile(name, data, pol)
	}
	if err != nil {
		return nil, err
	}
	return c.Compile(ctx, tree, kind, cfg, opts)
}

func looksLikeArchive(data []byte) bool {
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return true
	}
	if len(data) >= 4 && data[0] == 'P' && data[1] == 'K' && (data[2] == 3 || data[2] == 5) {
		return true
	}
	return false
}
