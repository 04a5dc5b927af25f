// Copyright 2025 Signia Protocol
//
// Compiler Service Entrypoint
// Wires the deterministic core into its collaborators: configuration from
// the environment, the optional Postgres bundle store, and the HTTP API.
// The core itself holds no state; everything here is shell.

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SIGNIAINDEX/SIGNIA/pkg/bundle"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/config"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/input"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/pipeline"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/builtin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/server"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/store"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/version"
)

func main() {
	logger := log.New(log.Writer(), "[Signia] ", log.LstdFlags)
	logger.Printf("starting %s %s", version.Compiler, version.Version)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	pol := input.DefaultPolicy()
	opts := bundle.DefaultOptions()
	if cfg.PolicyFile != "" {
		pf, err := config.LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			logger.Fatalf("load policy file: %v", err)
		}
		pol = pf.Policy
		opts.InclusionProofs = pf.Options.InclusionProofs
		opts.ManifestHash = pf.Options.ManifestHash
		logger.Printf("loaded policy file %s", cfg.PolicyFile)
	}

	host, err := builtin.Host(ir.DefaultBounds())
	if err != nil {
		logger.Fatalf("register plugins: %v", err)
	}
	compiler := pipeline.New(host)
	logger.Printf("registered plugins for kinds %v", host.Kinds())

	var repo *store.Repository
	if cfg.DatabaseURL != "" {
		client, err := store.NewClient(cfg)
		if err != nil {
			if cfg.DatabaseRequired {
				logger.Fatalf("connect bundle store: %v", err)
			}
			logger.Printf("bundle store unavailable, continuing without: %v", err)
		} else {
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := client.Migrate(ctx); err != nil {
				cancel()
				logger.Fatalf("migrate bundle store: %v", err)
			}
			cancel()
			repo = store.NewRepository(client)
		}
	}

	srv := server.New(cfg, compiler, repo, pol, opts)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil {
			logger.Fatalf("server failed: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("shutdown incomplete: %v", err)
	}
	logger.Printf("stopped")
}
