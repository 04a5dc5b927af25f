// Copyright 2025 Signia Protocol
//
// Normalization Policies
// Declarative rules applied to every input before a plugin sees it: logical
// path root, newline and encoding normalization, symlink and network policy,
// and hard ingest limits. Policies can be loaded from YAML files.

package input

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/fault"
)

// Policy option values.
const (
	NewlineLF       = "lf"
	NewlinePreserve = "preserve"

	EncodingUTF8 = "utf-8"

	SymlinksDeny        = "deny"
	SymlinksResolveRoot = "resolve-within-root"

	NetworkDeny       = "deny"
	NetworkPinnedOnly = "allow-pinned-only"
)

// DefaultPathRoot is the logical prefix for all normalized paths.
const DefaultPathRoot = "artifact:/"

// Policy controls input normalization. The zero value is not valid; use
// DefaultPolicy and override fields.
type Policy struct {
	PathRoot      string `yaml:"path_root"`
	Newline       string `yaml:"newline"`
	Encoding      string `yaml:"encoding"`
	Symlinks      string `yaml:"symlinks"`
	Network       string `yaml:"network"`
	MaxTotalBytes int64  `yaml:"max_total_bytes"`
	MaxFileBytes  int64  `yaml:"max_file_bytes"`
	MaxFiles      int    `yaml:"max_files"`
	MaxDepth      int    `yaml:"max_depth"`
	TimeoutMS     int64  `yaml:"timeout_ms"`
}

// DefaultPolicy returns the policy used when the caller supplies none.
func DefaultPolicy() Policy {
	return Policy{
		PathRoot:      DefaultPathRoot,
		Newline:       NewlineLF,
		Encoding:      EncodingUTF8,
		Symlinks:      SymlinksDeny,
		Network:       NetworkDeny,
		MaxTotalBytes: 256 * 1024 * 1024,
		MaxFileBytes:  32 * 1024 * 1024,
		MaxFiles:      50000,
		MaxDepth:      32,
		TimeoutMS:     60000,
	}
}

// ParsePolicyYAML loads a policy from YAML bytes, starting from defaults.
func ParsePolicyYAML(data []byte) (Policy, error) {
	pol := DefaultPolicy()
	if err := yaml.Unmarshal(data, &pol); err != nil {
		return pol, fmt.Errorf("parse policy: %w", err)
	}
	if err := pol.Validate(); err != nil {
		return pol, err
	}
	return pol, nil
}

// Validate rejects option values outside the recognized sets. Newline
// "preserve" is forbidden because compiled text participates in hashed
// domains.
func (p Policy) Validate() error {
	if p.PathRoot == "" {
		return fault.New(fault.Internal, "policy path_root must not be empty")
	}
	switch p.Newline {
	case NewlineLF:
	case NewlinePreserve:
		return fault.New(fault.InputEncodingInvalid, "newline=preserve is forbidden in hashed domains").
			With("option", "newline")
	default:
		return fault.Newf(fault.Internal, "unknown newline policy %q", p.Newline)
	}
	if p.Encoding != EncodingUTF8 {
		return fault.Newf(fault.InputEncodingInvalid, "encoding %q is not supported", p.Encoding).
			With("option", "encoding")
	}
	switch p.Symlinks {
	case SymlinksDeny, SymlinksResolveRoot:
	default:
		return fault.Newf(fault.Internal, "unknown symlink policy %q", p.Symlinks)
	}
	switch p.Network {
	case NetworkDeny, NetworkPinnedOnly:
	default:
		return fault.Newf(fault.Internal, "unknown network policy %q", p.Network)
	}
	return nil
}

// Value renders the normalization half of the policy for the manifest
// hashed view.
func (p Policy) Value() map[string]interface{} {
	return map[string]interface{}{
		"path_root": p.PathRoot,
		"newline":   p.Newline,
		"encoding":  p.Encoding,
		"symlinks":  p.Symlinks,
		"network":   p.Network,
	}
}

// LimitsValue renders the ingest limits for the manifest hashed view.
func (p Policy) LimitsValue() map[string]interface{} {
	return map[string]interface{}{
		"max_total_bytes": p.MaxTotalBytes,
		"max_file_bytes":  p.MaxFileBytes,
		"max_files":       int64(p.MaxFiles),
		"max_depth":       int64(p.MaxDepth),
	}
}

// CheckRemoteRef applies the network policy to a remote reference found in
// an input. Under deny every remote reference fails; under
// allow-pinned-only the reference must carry a 32-byte content hash.
func CheckRemoteRef(pol Policy, ref, pinnedHex string) error {
	switch pol.Network {
	case NetworkDeny:
		return fault.New(fault.InputNetworkDisabled, "remote references are disabled by policy").
			With("ref", ref)
	case NetworkPinnedOnly:
		if pinnedHex == "" {
			return fault.New(fault.InputNetworkDisabled, "remote reference is not pinned").
				With("ref", ref)
		}
		if raw, err := hex.DecodeString(pinnedHex); err != nil || len(raw) != sha256.Size {
			return fault.New(fault.InputChecksumMismatch, "pinned hash must be 32 bytes of hex").
				With("ref", ref)
		}
		return nil
	}
	return fault.Newf(fault.Internal, "unknown network policy %q", pol.Network)
}

// VerifyPinned recomputes the content hash of fetched bytes and compares it
// with the caller-supplied pin.
func VerifyPinned(data []byte, pinnedHex string) error {
	want, err := hex.DecodeString(pinnedHex)
	if err != nil || len(want) != sha256.Size {
		return fault.New(fault.InputChecksumMismatch, "pinned hash must be 32 bytes of hex")
	}
	got := sha256.Sum256(data)
	if subtle.ConstantTimeCompare(got[:], want) != 1 {
		return fault.New(fault.InputChecksumMismatch, "content hash does not match pin").
			With("expected", pinnedHex).
			With("actual", hex.EncodeToString(got[:]))
	}
	return nil
}
