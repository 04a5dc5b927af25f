// Copyright 2025 Signia Protocol
//
// Domain-Separated Hashing
// Every hash in the system is computed over a versioned domain tag, a single
// zero separator byte, and the canonical payload bytes. The primitive is
// SHA-256 for the v1 format and is recorded in the manifest under
// toolchain.compiler.hash_function.

package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Function names the hash primitive for the v1 format. Changing it requires
// a major version bump.
const Function = "sha-256"

// Size is the digest size in bytes.
const Size = 32

// Recognized hash domains for the v1 format.
const (
	DomainSchema         = "signia:schema:v1"
	DomainManifest       = "signia:manifest:v1"
	DomainProof          = "signia:proof:v1"
	DomainProofRoot      = "signia:proof-root:v1"
	DomainLeafEntity     = "signia:leaf:entity:v1"
	DomainLeafEdge       = "signia:leaf:edge:v1"
	DomainLeafType       = "signia:leaf:type:v1"
	DomainLeafConstraint = "signia:leaf:constraint:v1"
	DomainMerkleNode     = "signia:merkle:node:v1"
	DomainPluginConfig   = "signia:plugin-config:v1"
	DomainDescriptor     = "signia:descriptor:v1"
	DomainContent        = "signia:content:v1"
)

// ContentDigest renders the digest of raw content bytes, used for entity
// digest fields.
func ContentDigest(data []byte) string {
	return Hex(Sum(DomainContent, data))
}

// Sum computes H(domain, payload) = SHA-256(domain || 0x00 || payload).
func Sum(domain string, payload []byte) [Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(payload)
	var out [Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Hex renders a digest as lowercase hex. Hashes are raw bytes internally and
// hex only at the API boundary.
func Hex(digest [Size]byte) string {
	return hex.EncodeToString(digest[:])
}

// ParseHex decodes a lowercase hex digest back into raw bytes.
func ParseHex(s string) ([Size]byte, error) {
	var out [Size]byte
	if len(s) != Size*2 {
		return out, fmt.Errorf("digest must be %d hex characters, got %d", Size*2, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("invalid hex digest: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

// LeafDomain maps a leaf kind to its hash domain.
func LeafDomain(kind string) (string, bool) {
	switch kind {
	case "entity":
		return DomainLeafEntity, true
	case "edge":
		return DomainLeafEdge, true
	case "type":
		return DomainLeafType, true
	case "constraint":
		return DomainLeafConstraint, true
	}
	return "", false
}
