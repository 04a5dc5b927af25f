// Copyright 2025 Signia Protocol
//
// Bundle Verifier
// Recomputes canonical bytes, hashes, and the Merkle root from a received
// bundle and compares them with the stored values. Checks run in a fixed
// order and fail closed: the first mismatch aborts with a stable code.
//
// Check order:
//   1. shape            - all three documents parse into the canonical model
//   2. versions         - v1 version fields and hash domains
//   3. schema_canonical - stored schema bytes re-serialize identically and
//                         the document is self-consistent with its schema_id
//   4. schema_hash      - recomputed hash matches manifest.bundle.schema_hash
//   5. proof_root       - recomputed leaves and Merkle root match the proof
//   6. inclusion        - every stored inclusion proof terminates at the root
//   7. proof_canonical  - the whole proof document matches a rebuild
//   8. manifest_hash    - recomputed hashed view matches bundle.manifest_hash

package verification

import (
	"sort"
	"strconv"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/merkle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/schema"
)

// Config controls verification strictness.
type Config struct {
	// Strict additionally fails on unknown keys in hashed domains,
	// non-canonical key ordering in stored files, and a meta subtree in the
	// schema document. Inclusion proofs for leaves not in the schema fail in
	// both modes.
	Strict bool
}

// DefaultConfig returns the non-strict configuration.
func DefaultConfig() *Config {
	return &Config{Strict: false}
}

// CheckResult records one verification stage.
type CheckResult struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

// Report is the verification outcome. Failure is nil when OK.
type Report struct {
	OK      bool          `json:"ok"`
	Checks  []CheckResult `json:"checks"`
	Failure *fault.Fault  `json:"failure,omitempty"`
}

// Verifier verifies assembled bundles.
type Verifier struct {
	config *Config
}

// NewVerifier creates a verifier.
func NewVerifier(config *Config) *Verifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &Verifier{config: config}
}

type documents struct {
	schema   map[string]interface{}
	manifest map[string]interface{}
	proof    map[string]interface{}
}

// VerifyBundle runs all checks over the raw bundle files. The returned
// error, when non-nil, is the same fault recorded in the report.
func (v *Verifier) VerifyBundle(f bundle.Files) (*Report, error) {
	report := &Report{}
	run := func(name string, check func() error) error {
		if err := check(); err != nil {
			report.Checks = append(report.Checks, CheckResult{Name: name, OK: false})
			report.Failure = fault.As(err)
			return err
		}
		report.Checks = append(report.Checks, CheckResult{Name: name, OK: true})
		return nil
	}

	var docs documents
	var leaves []schema.LeafItem
	var leafHashes [][hashing.Size]byte
	var merkleRoot [hashing.Size]byte
	var schemaHash [hashing.Size]byte

	steps := []struct {
		name  string
		check func() error
	}{
		{"shape", func() error {
			var err error
			docs, err = v.decodeAll(f)
			return err
		}},
		{"versions", func() error { return v.checkVersions(docs) }},
		{"schema_canonical", func() error {
			var err error
			schemaHash, err = v.checkSchemaCanonical(f.Schema, docs.schema)
			return err
		}},
		{"schema_hash", func() error { return v.checkSchemaHash(docs, schemaHash) }},
		{"proof_root", func() error {
			var err error
			leaves, leafHashes, merkleRoot, err = v.checkProofRoot(docs)
			return err
		}},
		{"inclusion", func() error { return v.checkInclusion(docs, leaves, leafHashes, merkleRoot) }},
		{"proof_canonical", func() error { return v.checkProofCanonical(docs, leaves, leafHashes) }},
		{"manifest_hash", func() error { return v.checkManifestHash(docs) }},
	}
	for _, step := range steps {
		if err := run(step.name, step.check); err != nil {
			return report, err
		}
	}
	report.OK = true
	return report, nil
}

// =============================================================================
// CHECK 1: SHAPE
// =============================================================================

func (v *Verifier) decodeAll(f bundle.Files) (documents, error) {
	var docs documents
	decode := canonical.Decode
	if v.config.Strict {
		decode = canonical.DecodeStrict
	}

	parse := func(data []byte, code fault.Code, name string) (map[string]interface{}, error) {
		val, err := decode(data)
		if err != nil {
			return nil, fault.Newf(code, "%s does not parse canonically", name).
				With("document", name)
		}
		obj, ok := val.(map[string]interface{})
		if !ok {
			return nil, fault.Newf(code, "%s is not an object", name).
				With("document", name)
		}
		return obj, nil
	}

	var err error
	if docs.schema, err = parse(f.Schema, fault.BundleInvalidSchema, "schema.json"); err != nil {
		return docs, err
	}
	if docs.manifest, err = parse(f.Manifest, fault.BundleInvalidManifest, "manifest.json"); err != nil {
		return docs, err
	}
	if docs.proof, err = parse(f.Proof, fault.BundleInvalidProof, "proof.json"); err != nil {
		return docs, err
	}

	if v.config.Strict {
		if err := checkKnownKeys(docs.schema, fault.BundleInvalidSchema,
			"hash_domain", "meta", "root", "schema_id", "schema_version"); err != nil {
			return docs, err
		}
		if _, hasMeta := docs.schema["meta"]; hasMeta {
			return docs, fault.New(fault.BundleInvalidSchema, "meta subtree is forbidden in strict mode")
		}
		if err := checkKnownKeys(docs.manifest, fault.BundleInvalidManifest,
			"bundle", "dependencies", "hash_domain", "input", "manifest_version", "non_hashed", "policies", "toolchain"); err != nil {
			return docs, err
		}
		if mb, ok := docs.manifest["bundle"].(map[string]interface{}); ok {
			if err := checkKnownKeys(mb, fault.BundleInvalidManifest,
				"created_by", "manifest_hash", "proof_root", "proof_version", "schema_hash", "schema_version"); err != nil {
				return docs, err
			}
		}
		if err := checkKnownKeys(docs.proof, fault.BundleInvalidProof,
			"hash_domain", "hash_function", "inclusion_proofs", "leaves", "proof_version", "root"); err != nil {
			return docs, err
		}
	}
	return docs, nil
}

func checkKnownKeys(doc map[string]interface{}, code fault.Code, allowed ...string) error {
	known := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		known[k] = true
	}
	for k := range doc {
		if !known[k] {
			return fault.New(code, "unknown key in hashed domain").With("key", k)
		}
	}
	return nil
}

// =============================================================================
// CHECK 2: VERSIONS
// =============================================================================

func (v *Verifier) checkVersions(docs documents) error {
	expect := func(doc map[string]interface{}, key, want string, code fault.Code) error {
		got, _ := doc[key].(string)
		if got != want {
			return fault.Newf(code, "%s must be %q", key, want).
				With("field", key).With("expected", want).With("actual", got)
		}
		return nil
	}
	if err := expect(docs.schema, "schema_version", "v1", fault.BundleInvalidSchema); err != nil {
		return err
	}
	if err := expect(docs.schema, "hash_domain", hashing.DomainSchema, fault.BundleInvalidSchema); err != nil {
		return err
	}
	if err := expect(docs.manifest, "manifest_version", "v1", fault.BundleInvalidManifest); err != nil {
		return err
	}
	if err := expect(docs.manifest, "hash_domain", hashing.DomainManifest, fault.BundleInvalidManifest); err != nil {
		return err
	}
	if err := expect(docs.proof, "proof_version", "v1", fault.BundleInvalidProof); err != nil {
		return err
	}
	if err := expect(docs.proof, "hash_domain", hashing.DomainProof, fault.BundleInvalidProof); err != nil {
		return err
	}
	return expect(docs.proof, "hash_function", hashing.Function, fault.BundleInvalidProof)
}

// =============================================================================
// CHECK 3: SCHEMA CANONICAL FORM
// =============================================================================

// checkSchemaCanonical re-serializes the parsed schema and compares
// byte-for-byte with the stored document, then recomputes the hashed-view
// hash and compares it with the document's own schema_id. Either mismatch
// is tamper evidence, reported before any cross-document hash check.
func (v *Verifier) checkSchemaCanonical(stored []byte, schemaDoc map[string]interface{}) ([hashing.Size]byte, error) {
	var zero [hashing.Size]byte
	reencoded, err := canonical.Encode(schemaDoc)
	if err != nil {
		return zero, fault.New(fault.BundleCanonicalizationFailed, "schema does not re-encode").
			With("kind", "schema_canonical")
	}
	if string(reencoded) != string(stored) {
		return zero, fault.New(fault.BundleTampered, "stored schema bytes are not canonical").
			With("kind", "schema_canonical")
	}

	hashed := shallowCopy(schemaDoc)
	delete(hashed, "schema_id")
	delete(hashed, "meta")
	hashedBytes, err := canonical.Encode(hashed)
	if err != nil {
		return zero, fault.New(fault.BundleCanonicalizationFailed, "schema hashed view does not encode").
			With("kind", "schema_canonical")
	}
	recomputed := hashing.Sum(hashing.DomainSchema, hashedBytes)

	schemaID, _ := schemaDoc["schema_id"].(string)
	if schemaID != hashing.Hex(recomputed) {
		return zero, fault.New(fault.BundleTampered, "schema content does not match its schema_id").
			With("kind", "schema_canonical").
			With("expected", hashing.Hex(recomputed)).
			With("actual", schemaID)
	}
	return recomputed, nil
}

// =============================================================================
// CHECK 4: SCHEMA HASH
// =============================================================================

func (v *Verifier) checkSchemaHash(docs documents, recomputed [hashing.Size]byte) error {
	mb, _ := docs.manifest["bundle"].(map[string]interface{})
	stored, _ := mb["schema_hash"].(string)
	if stored != hashing.Hex(recomputed) {
		return fault.New(fault.BundleHashMismatch, "manifest schema_hash does not match recomputation").
			With("kind", "schema_hash").
			With("expected", hashing.Hex(recomputed)).
			With("actual", stored)
	}
	return nil
}

// =============================================================================
// CHECK 5: LEAVES AND MERKLE ROOT
// =============================================================================

func (v *Verifier) checkProofRoot(docs documents) ([]schema.LeafItem, [][hashing.Size]byte, [hashing.Size]byte, error) {
	var zero [hashing.Size]byte

	leaves, err := schemaLeaves(docs.schema)
	if err != nil {
		return nil, nil, zero, err
	}
	leafHashes, err := bundle.HashLeaves(leaves)
	if err != nil {
		return nil, nil, zero, fault.New(fault.BundleCanonicalizationFailed, "leaf projection does not encode").
			With("kind", "proof_root")
	}

	proofLeaves, _ := docs.proof["leaves"].(map[string]interface{})
	leafSet, _ := proofLeaves["leaf_set"].(map[string]interface{})
	storedCount, _ := leafSet["leaf_count"].(int64)
	if storedCount != int64(len(leaves)) {
		return nil, nil, zero, fault.New(fault.BundleHashMismatch, "proof leaf_count does not match the schema").
			With("kind", "proof_root").
			With("expected", itoa(len(leaves))).
			With("actual", itoa(int(storedCount)))
	}

	items, _ := proofLeaves["items"].([]interface{})
	if len(items) != len(leaves) {
		return nil, nil, zero, fault.New(fault.BundleHashMismatch, "proof leaf items do not match the schema").
			With("kind", "proof_root")
	}
	for i, raw := range items {
		item, _ := raw.(map[string]interface{})
		id, _ := item["id"].(string)
		hash, _ := item["hash"].(string)
		if id != leaves[i].ID || hash != hashing.Hex(leafHashes[i]) {
			return nil, nil, zero, fault.New(fault.BundleHashMismatch, "stored leaf hash does not match recomputation").
				With("kind", "proof_root").
				With("leaf_id", leaves[i].ID).
				With("expected", hashing.Hex(leafHashes[i])).
				With("actual", hash)
		}
	}

	root, _ := docs.proof["root"].(map[string]interface{})
	tree, _ := root["tree"].(map[string]interface{})
	rule, _ := tree["odd_leaf_rule"].(string)

	var merkleRoot, wrapped [hashing.Size]byte
	if len(leafHashes) == 0 {
		wrapped = merkle.EmptyRoot()
	} else {
		built, err := merkle.Build(leafHashes, rule)
		if err != nil {
			return nil, nil, zero, fault.New(fault.BundleInvalidProof, "proof declares an unknown odd_leaf_rule").
				With("odd_leaf_rule", rule)
		}
		merkleRoot = built.Root()
		wrapped = merkle.WrapRoot(merkleRoot, uint64(len(leafHashes)))
	}

	storedRoot, _ := root["root_hash"].(string)
	if storedRoot != hashing.Hex(wrapped) {
		return nil, nil, zero, fault.New(fault.BundleHashMismatch, "proof root_hash does not match recomputation").
			With("kind", "proof_root").
			With("expected", hashing.Hex(wrapped)).
			With("actual", storedRoot)
	}
	mb, _ := docs.manifest["bundle"].(map[string]interface{})
	manifestRoot, _ := mb["proof_root"].(string)
	if manifestRoot != hashing.Hex(wrapped) {
		return nil, nil, zero, fault.New(fault.BundleHashMismatch, "manifest proof_root does not match recomputation").
			With("kind", "proof_root").
			With("expected", hashing.Hex(wrapped)).
			With("actual", manifestRoot)
	}

	if commitment, ok := leafSet["leaf_commitment"].(string); ok {
		var concat []byte
		for _, h := range leafHashes {
			concat = append(concat, h[:]...)
		}
		want := hashing.Hex(hashing.Sum(hashing.DomainProof, concat))
		if commitment != want {
			return nil, nil, zero, fault.New(fault.BundleHashMismatch, "leaf_commitment does not match recomputation").
				With("kind", "proof_root").
				With("expected", want).
				With("actual", commitment)
		}
	}

	return leaves, leafHashes, merkleRoot, nil
}

// checkProofCanonical rebuilds the entire proof document from the schema,
// the declared odd-leaf rule, and the inclusion-proof option, then compares
// byte-for-byte. Every proof field not covered by a targeted check is
// closed here.
func (v *Verifier) checkProofCanonical(docs documents, leaves []schema.LeafItem, leafHashes [][hashing.Size]byte) error {
	root, _ := docs.proof["root"].(map[string]interface{})
	tree, _ := root["tree"].(map[string]interface{})
	rule, _ := tree["odd_leaf_rule"].(string)
	_, hasInclusion := docs.proof["inclusion_proofs"]

	expected, err := bundle.ProofDocument(leaves, leafHashes, rule, hasInclusion)
	if err != nil {
		return fault.New(fault.BundleCanonicalizationFailed, "proof does not rebuild").
			With("kind", "proof_canonical")
	}
	expectedBytes, err := canonical.Encode(expected)
	if err != nil {
		return fault.New(fault.BundleCanonicalizationFailed, "proof does not encode").
			With("kind", "proof_canonical")
	}
	storedBytes, err := canonical.Encode(docs.proof)
	if err != nil || string(expectedBytes) != string(storedBytes) {
		return fault.New(fault.BundleTampered, "stored proof does not match recomputation").
			With("kind", "proof_canonical")
	}
	return nil
}

// =============================================================================
// CHECK 6: INCLUSION PROOFS
// =============================================================================

func (v *Verifier) checkInclusion(docs documents, leaves []schema.LeafItem, leafHashes [][hashing.Size]byte, merkleRoot [hashing.Size]byte) error {
	proofs, ok := docs.proof["inclusion_proofs"].([]interface{})
	if !ok || len(proofs) == 0 {
		return nil
	}

	byID := make(map[string][hashing.Size]byte, len(leaves))
	for i, leaf := range leaves {
		byID[leaf.ID] = leafHashes[i]
	}

	for _, raw := range proofs {
		p, _ := raw.(map[string]interface{})
		leafID, _ := p["leaf_id"].(string)
		leafHex, _ := p["leaf_hash"].(string)
		leaf, known := byID[leafID]
		if !known {
			return fault.New(fault.BundleInvalidProof, "inclusion proof for a leaf not in the schema").
				With("leaf_id", leafID)
		}
		if leafHex != hashing.Hex(leaf) {
			return fault.New(fault.BundleHashMismatch, "inclusion proof leaf hash does not match recomputation").
				With("kind", "inclusion").
				With("leaf_id", leafID).
				With("expected", hashing.Hex(leaf)).
				With("actual", leafHex)
		}
		steps, _ := p["path"].([]interface{})
		path := make([]merkle.PathStep, 0, len(steps))
		for _, rawStep := range steps {
			step, _ := rawStep.(map[string]interface{})
			side, _ := step["side"].(string)
			hashHex, _ := step["hash"].(string)
			h, err := hashing.ParseHex(hashHex)
			if err != nil {
				return fault.New(fault.BundleInvalidProof, "inclusion proof step hash is malformed").
					With("leaf_id", leafID)
			}
			path = append(path, merkle.PathStep{Side: side, Hash: h})
		}
		if !merkle.VerifyPath(leaf, path, merkleRoot) {
			return fault.New(fault.BundleHashMismatch, "inclusion proof does not terminate at the root").
				With("kind", "inclusion").
				With("leaf_id", leafID)
		}
	}
	return nil
}

// =============================================================================
// CHECK 8: MANIFEST HASH
// =============================================================================

func (v *Verifier) checkManifestHash(docs documents) error {
	mb, _ := docs.manifest["bundle"].(map[string]interface{})
	stored, ok := mb["manifest_hash"].(string)
	if !ok {
		// manifest_hash is optional; absent means the caller did not select
		// the manifest-hashing policy.
		return nil
	}

	hashed := shallowCopy(docs.manifest)
	delete(hashed, "non_hashed")
	hb := shallowCopy(mb)
	delete(hb, "manifest_hash")
	hashed["bundle"] = hb

	b, err := canonical.Encode(hashed)
	if err != nil {
		return fault.New(fault.BundleCanonicalizationFailed, "manifest hashed view does not encode").
			With("kind", "manifest_hash")
	}
	recomputed := hashing.Sum(hashing.DomainManifest, b)
	if stored != hashing.Hex(recomputed) {
		return fault.New(fault.BundleHashMismatch, "manifest_hash does not match recomputation").
			With("kind", "manifest_hash").
			With("expected", hashing.Hex(recomputed)).
			With("actual", stored)
	}
	return nil
}

// =============================================================================
// SCHEMA LEAF EXTRACTION
// =============================================================================

// schemaLeaves extracts the leaf projections from a parsed schema document
// in leaf order: entities, edges, types, constraints, each sorted by id.
func schemaLeaves(schemaDoc map[string]interface{}) ([]schema.LeafItem, error) {
	root, _ := schemaDoc["root"].(map[string]interface{})
	if root == nil {
		return nil, fault.New(fault.BundleInvalidSchema, "schema has no root")
	}
	graph, _ := root["graph"].(map[string]interface{})
	types, _ := root["types"].(map[string]interface{})
	constraints, _ := root["constraints"].(map[string]interface{})

	var out []schema.LeafItem
	sections := []struct {
		kind  string
		items interface{}
	}{
		{"entity", graph["entities"]},
		{"edge", graph["edges"]},
		{"type", types["definitions"]},
		{"constraint", constraints["rules"]},
	}
	for _, section := range sections {
		arr, _ := section.items.([]interface{})
		leaves := make([]schema.LeafItem, 0, len(arr))
		for _, raw := range arr {
			item, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fault.New(fault.BundleInvalidSchema, "schema item is not an object")
			}
			id, _ := item["id"].(string)
			if id == "" {
				return nil, fault.New(fault.BundleInvalidSchema, "schema item has no id")
			}
			leaves = append(leaves, schema.LeafItem{Kind: section.kind, ID: id, Projection: item})
		}
		sort.SliceStable(leaves, func(i, j int) bool { return leaves[i].ID < leaves[j].ID })
		out = append(out, leaves...)
	}
	return out, nil
}

func shallowCopy(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
