// Copyright 2025 Signia Protocol
//
// Signia CLI
// Thin command surface over the core operations: compile, verify, inspect,
// and hash. The CLI adds no semantics; it moves bytes between the
// filesystem and the core.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/canonical"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/config"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/hashing"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/pipeline"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/builtin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/verification"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "signia",
		Short:         "Deterministic schema compiler",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCompileCmd(), newVerifyCmd(), newInspectCmd(), newHashCmd())
	return root
}

func newCompileCmd() *cobra.Command {
	var (
		kind       string
		out        string
		policyFile string
		configJSON string
		name       string
	)
	cmd := &cobra.Command{
		Use:   "compile <input>",
		Short: "Compile an input into a content-addressed bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pol := input.DefaultPolicy()
			opts := bundle.DefaultOptions()
			if policyFile != "" {
				pf, err := config.LoadPolicyFile(policyFile)
				if err != nil {
					return err
				}
				pol = pf.Policy
				opts.InclusionProofs = pf.Options.InclusionProofs
				opts.ManifestHash = pf.Options.ManifestHash
			}

			cfg := plugin.Config{}
			if configJSON != "" {
				v, err := canonical.Decode([]byte(configJSON))
				if err != nil {
					return err
				}
				obj, ok := v.(map[string]interface{})
				if !ok {
					return fmt.Errorf("plugin config must be a JSON object")
				}
				cfg = plugin.Config(obj)
			}

			host, err := builtin.Host(ir.DefaultBounds())
			if err != nil {
				return err
			}
			compiler := pipeline.New(host)

			tree, err := loadTree(args[0], pol)
			if err != nil {
				return err
			}
			opts.Source = "file:" + name
			b, err := compiler.Compile(context.Background(), tree, ir.ArtifactKind(kind), cfg, opts)
			if err != nil {
				return err
			}
			if err := b.WriteDir(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema_hash  %s\n", hashing.Hex(b.SchemaHash))
			fmt.Fprintf(cmd.OutOrStdout(), "proof_root   %s\n", hashing.Hex(b.ProofRoot))
			fmt.Fprintf(cmd.OutOrStdout(), "leaf_count   %d\n", b.LeafCount)
			fmt.Fprintf(cmd.OutOrStdout(), "bundle       %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "artifact kind (repo|openapi|dataset|workflow|config)")
	cmd.Flags().StringVar(&out, "out", "bundle", "output bundle directory")
	cmd.Flags().StringVar(&policyFile, "policy-file", "", "YAML normalization policy file")
	cmd.Flags().StringVar(&configJSON, "config", "", "plugin config as JSON")
	cmd.Flags().StringVar(&name, "name", "input", "logical input name, recorded as the manifest source file:<name>")
	cmd.MarkFlagRequired("kind")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "verify <bundle-dir>",
		Short: "Verify a bundle against its own hashes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := bundle.ReadDir(args[0])
			if err != nil {
				return err
			}
			verifier := verification.NewVerifier(&verification.Config{Strict: strict})
			report, err := verifier.VerifyBundle(files)
			for _, check := range report.Checks {
				mark := "ok"
				if !check.OK {
					mark = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-18s %s\n", check.Name, mark)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "bundle verified")
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "enable strict verification")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <bundle-dir>",
		Short: "Summarize a bundle without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := bundle.ReadDir(args[0])
			if err != nil {
				return err
			}
			summary, err := bundle.Inspect(files)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}

func newHashCmd() *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "hash [file]",
		Short: "Hash canonical bytes in a domain",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashing.Hex(hashing.Sum(domain, data)))
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", hashing.DomainSchema, "hash domain tag")
	return cmd
}

func loadTree(path string, pol input.Policy) (*input.Tree, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input %s is not readable", path)
	}
	if info.IsDir() {
		return input.FromDir(path, pol)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("input %s is not readable", path)
	}
	if len(data) >= 2 && (data[0] == 0x1f || (data[0] == 'P' && data[1] == 'K')) {
		return input.FromArchive(data, pol)
	}
	return input.FromFile(info.Name(), data, pol)
}
