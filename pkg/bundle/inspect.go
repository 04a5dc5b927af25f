// Copyright 2025 Signia Protocol
//
// Bundle Inspection
// Read-only summary of a bundle: artifact identity, collection counts, and
// the stored hashes. Inspection never verifies; it reports what the bundle
// claims.

package bundle

import (
	"fmt"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// Summary is the inspection result.
type Summary struct {
	SchemaID     string `json:"schema_id"`
	ArtifactKind string `json:"artifact_kind"`
	ArtifactName string `json:"artifact_name"`

	Entities    int `json:"entities"`
	Edges       int `json:"edges"`
	Types       int `json:"types"`
	Constraints int `json:"constraints"`

	LeafCount  int64  `json:"leaf_count"`
	SchemaHash string `json:"schema_hash"`
	ProofRoot  string `json:"proof_root"`

	Plugins []string `json:"plugins"`
}

// Inspect summarizes a bundle's documents without verifying them.
func Inspect(f Files) (*Summary, error) {
	schemaDoc, err := decodeObject(f.Schema, fault.BundleInvalidSchema, "schema.json")
	if err != nil {
		return nil, err
	}
	manifestDoc, err := decodeObject(f.Manifest, fault.BundleInvalidManifest, "manifest.json")
	if err != nil {
		return nil, err
	}
	proofDoc, err := decodeObject(f.Proof, fault.BundleInvalidProof, "proof.json")
	if err != nil {
		return nil, err
	}

	s := &Summary{}
	s.SchemaID, _ = schemaDoc["schema_id"].(string)

	root := object(schemaDoc, "root")
	artifact := object(root, "artifact")
	s.ArtifactKind, _ = artifact["kind"].(string)
	s.ArtifactName, _ = artifact["name"].(string)

	graph := object(root, "graph")
	s.Entities = count(graph, "entities")
	s.Edges = count(graph, "edges")
	s.Types = count(object(root, "types"), "definitions")
	s.Constraints = count(object(root, "constraints"), "rules")

	mb := object(manifestDoc, "bundle")
	s.SchemaHash, _ = mb["schema_hash"].(string)
	s.ProofRoot, _ = mb["proof_root"].(string)

	leafSet := object(object(proofDoc, "leaves"), "leaf_set")
	s.LeafCount, _ = leafSet["leaf_count"].(int64)

	plugins, _ := object(manifestDoc, "toolchain")["plugins"].([]interface{})
	for _, p := range plugins {
		if pm, ok := p.(map[string]interface{}); ok {
			name, _ := pm["name"].(string)
			ver, _ := pm["version"].(string)
			s.Plugins = append(s.Plugins, fmt.Sprintf("%s@%s", name, ver))
		}
	}
	return s, nil
}

func decodeObject(data []byte, code fault.Code, name string) (map[string]interface{}, error) {
	v, err := canonical.Decode(data)
	if err != nil {
		return nil, fault.Newf(code, "%s does not parse", name)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fault.Newf(code, "%s is not an object", name)
	}
	return obj, nil
}

func object(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	obj, _ := m[key].(map[string]interface{})
	return obj
}

func count(m map[string]interface{}, key string) int {
	if m == nil {
		return 0
	}
	arr, _ := m[key].([]interface{})
	return len(arr)
}
