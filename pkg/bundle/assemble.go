// Copyright 2025 Signia Protocol
//
// Bundle Assembler
// Produces the three canonical documents of a compilation: schema.json,
// manifest.json, and proof.json. The manifest hashed view excludes
// bundle.manifest_hash and the non_hashed subtree; both are appended after
// hashing.

package bundle

import (
	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/merkle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/schema"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/version"
)

// Document versions.
const (
	ManifestVersion = "v1"
	ProofVersion    = "v1"
)

// LeafOrdering names the total order of the leaf set.
const LeafOrdering = "kind_tag,stable_id"

// Bundle is a fully assembled compilation result. Bytes are canonical and
// immutable; the three documents are written together atomically.
type Bundle struct {
	SchemaBytes   []byte
	ManifestBytes []byte
	ProofBytes    []byte

	SchemaHash   [hashing.Size]byte
	ProofRoot    [hashing.Size]byte
	ManifestHash [hashing.Size]byte

	HasManifestHash bool
	LeafCount       int
}

// Options control optional bundle content.
type Options struct {
	// InclusionProofs emits a sibling path for every leaf.
	InclusionProofs bool
	// ManifestHash computes and stores bundle.manifest_hash.
	ManifestHash bool
	// Source is the caller-declared logical input source.
	Source string
	// Dependencies lists schema hashes (hex) this schema depends on.
	Dependencies []string
	// NonHashed is appended to the manifest outside the hashed view.
	NonHashed map[string]interface{}
}

// DefaultOptions enable the manifest hash and inclusion proofs.
func DefaultOptions() Options {
	return Options{InclusionProofs: true, ManifestHash: true, Source: "caller"}
}

// Assemble seals the schema document, builds the Merkle commitment, and
// emits the three canonical documents.
func Assemble(doc *schema.Document, rec plugin.Record, pol input.Policy, opts Options) (*Bundle, error) {
	schemaHash, err := doc.Seal()
	if err != nil {
		return nil, err
	}
	schemaBytes, err := doc.CanonicalBytes()
	if err != nil {
		return nil, err
	}

	leaves := doc.Leaves()
	leafHashes, err := HashLeaves(leaves)
	if err != nil {
		return nil, err
	}

	var tree *merkle.Tree
	var proofRoot [hashing.Size]byte
	if len(leafHashes) == 0 {
		proofRoot = merkle.EmptyRoot()
	} else {
		tree, err = merkle.Build(leafHashes, merkle.OddLeafDuplicateLast)
		if err != nil {
			return nil, fault.Newf(fault.Internal, "merkle build failed: %v", err)
		}
		proofRoot = merkle.WrapRoot(tree.Root(), uint64(len(leafHashes)))
	}

	proofDoc, err := ProofDocument(leaves, leafHashes, merkle.OddLeafDuplicateLast, opts.InclusionProofs)
	if err != nil {
		return nil, err
	}
	proofBytes, err := canonical.Encode(proofDoc)
	if err != nil {
		return nil, err
	}

	hashedView, err := manifestHashedView(doc, rec, pol, schemaHash, proofRoot, opts)
	if err != nil {
		return nil, err
	}
	hashedBytes, err := canonical.Encode(hashedView)
	if err != nil {
		return nil, err
	}
	manifestHash := hashing.Sum(hashing.DomainManifest, hashedBytes)

	full := hashedView
	if opts.ManifestHash {
		full["bundle"].(map[string]interface{})["manifest_hash"] = hashing.Hex(manifestHash)
	}
	if len(opts.NonHashed) > 0 {
		full["non_hashed"] = opts.NonHashed
	}
	manifestBytes, err := canonical.Encode(full)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		SchemaBytes:     schemaBytes,
		ManifestBytes:   manifestBytes,
		ProofBytes:      proofBytes,
		SchemaHash:      schemaHash,
		ProofRoot:       proofRoot,
		ManifestHash:    manifestHash,
		HasManifestHash: opts.ManifestHash,
		LeafCount:       len(leafHashes),
	}, nil
}

// HashLeaves hashes every leaf projection in its leaf domain.
func HashLeaves(leaves []schema.LeafItem) ([][hashing.Size]byte, error) {
	out := make([][hashing.Size]byte, 0, len(leaves))
	for _, leaf := range leaves {
		domain, ok := hashing.LeafDomain(leaf.Kind)
		if !ok {
			return nil, fault.Newf(fault.Internal, "unknown leaf kind %s", leaf.Kind)
		}
		b, err := canonical.Encode(leaf.Projection)
		if err != nil {
			return nil, err
		}
		out = append(out, hashing.Sum(domain, b))
	}
	return out, nil
}

// ProofDocument builds the canonical proof document value for a leaf set
// under a given odd-leaf rule. The verifier rebuilds the same value from a
// received schema to confirm the stored proof byte-for-byte.
func ProofDocument(leaves []schema.LeafItem, hashes [][hashing.Size]byte, rule string, inclusionProofs bool) (map[string]interface{}, error) {
	if len(hashes) != len(leaves) {
		return nil, fault.New(fault.Internal, "leaf hash count does not match leaf count")
	}

	var tree *merkle.Tree
	var root [hashing.Size]byte
	if len(hashes) == 0 {
		root = merkle.EmptyRoot()
	} else {
		var err error
		tree, err = merkle.Build(hashes, rule)
		if err != nil {
			return nil, fault.Newf(fault.Internal, "merkle build failed: %v", err)
		}
		root = merkle.WrapRoot(tree.Root(), uint64(len(hashes)))
	}

	items := make([]interface{}, len(leaves))
	var commitment []byte
	for i, leaf := range leaves {
		items[i] = map[string]interface{}{
			"kind": leaf.Kind,
			"id":   leaf.ID,
			"hash": hashing.Hex(hashes[i]),
		}
		commitment = append(commitment, hashes[i][:]...)
	}

	leafSet := map[string]interface{}{
		"leaf_ordering": LeafOrdering,
		"leaf_count":    int64(len(leaves)),
	}
	if len(leaves) > 0 {
		leafSet["leaf_commitment"] = hashing.Hex(hashing.Sum(hashing.DomainProof, commitment))
	}

	v := map[string]interface{}{
		"proof_version": ProofVersion,
		"hash_domain":   hashing.DomainProof,
		"hash_function": hashing.Function,
		"root": map[string]interface{}{
			"root_hash":   hashing.Hex(root),
			"root_domain": hashing.DomainProofRoot,
			"tree": map[string]interface{}{
				"node_domain":   hashing.DomainMerkleNode,
				"odd_leaf_rule": rule,
				"arity":         int64(2),
			},
		},
		"leaves": map[string]interface{}{
			"leaf_set": leafSet,
			"items":    items,
		},
	}

	if inclusionProofs && tree != nil {
		proofs := make([]interface{}, len(leaves))
		for i, leaf := range leaves {
			path, err := tree.Proof(i)
			if err != nil {
				return nil, fault.Newf(fault.Internal, "inclusion proof failed: %v", err)
			}
			steps := make([]interface{}, len(path))
			for j, step := range path {
				steps[j] = map[string]interface{}{
					"side": step.Side,
					"hash": hashing.Hex(step.Hash),
				}
			}
			proofs[i] = map[string]interface{}{
				"leaf_id":   leaf.ID,
				"leaf_hash": hashing.Hex(hashes[i]),
				"path":      steps,
			}
		}
		v["inclusion_proofs"] = proofs
	}
	return v, nil
}

func manifestHashedView(doc *schema.Document, rec plugin.Record, pol input.Policy, schemaHash, proofRoot [hashing.Size]byte, opts Options) (map[string]interface{}, error) {
	descriptor := schema.DescriptorValue(doc.Artifact)
	descBytes, err := canonical.Encode(descriptor)
	if err != nil {
		return nil, err
	}
	descriptor["descriptor_hash"] = hashing.Hex(hashing.Sum(hashing.DomainDescriptor, descBytes))

	deps := make([]interface{}, len(opts.Dependencies))
	for i, d := range opts.Dependencies {
		deps[i] = d
	}
	source := opts.Source
	if source == "" {
		source = "caller"
	}

	return map[string]interface{}{
		"manifest_version": ManifestVersion,
		"hash_domain":      hashing.DomainManifest,
		"bundle": map[string]interface{}{
			"schema_hash":    hashing.Hex(schemaHash),
			"proof_root":     hashing.Hex(proofRoot),
			"schema_version": schema.Version,
			"proof_version":  ProofVersion,
			"created_by": map[string]interface{}{
				"compiler":         version.Compiler,
				"compiler_version": version.Version,
				"hash_function":    hashing.Function,
			},
		},
		"input": map[string]interface{}{
			"source":     source,
			"descriptor": descriptor,
		},
		"toolchain": map[string]interface{}{
			"compiler": map[string]interface{}{
				"name":          version.Compiler,
				"version":       version.Version,
				"hash_function": hashing.Function,
			},
			"plugins": []interface{}{
				map[string]interface{}{
					"name":        rec.Name,
					"version":     rec.Version,
					"config_hash": hashing.Hex(rec.ConfigHash),
				},
			},
		},
		"policies": map[string]interface{}{
			"normalization": pol.Value(),
			"limits":        pol.LimitsValue(),
		},
		"dependencies": map[string]interface{}{
			"schemas": deps,
		},
	}, nil
}
