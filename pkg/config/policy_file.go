// Copyright 2025 Signia Protocol
//
// Policy File Loader
// Loads a normalization policy and compile options from a YAML file with
// environment variable substitution of the form ${VAR_NAME}.

package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
)

// PolicyFile is the on-disk shape of a compilation policy.
type PolicyFile struct {
	Policy  input.Policy `yaml:"policy"`
	Options struct {
		InclusionProofs bool `yaml:"inclusion_proofs"`
		ManifestHash    bool `yaml:"manifest_hash"`
	} `yaml:"options"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Z][A-Z0-9_]*)\}`)

// LoadPolicyFile reads and validates a policy file. Unset environment
// references substitute as empty strings.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	substituted := envPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})

	pf := &PolicyFile{Policy: input.DefaultPolicy()}
	pf.Options.InclusionProofs = true
	pf.Options.ManifestHash = true
	if err := yaml.Unmarshal(substituted, pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := pf.Policy.Validate(); err != nil {
		return nil, err
	}
	return pf, nil
}
