// Copyright 2025 Signia Protocol

// Package builtin registers the plugins that ship with the compiler.
package builtin

import (
	"github.com/SIGNIAINDEX/SIGNIA/pkg/ir"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/configmodel"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/dataset"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/openapi"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/repo"
	"github.com/SIGNIAINDEX/SIGNIA/pkg/plugin/workflow"
)

// Host builds a plugin host with every built-in plugin registered. The
// spec and unknown kinds deliberately resolve to no plugin.
func Host(bounds ir.Bounds) (*plugin.Host, error) {
	host := plugin.NewHost(bounds)
	registrations := []struct {
		kind ir.ArtifactKind
		p    plugin.Plugin
	}{
		{ir.KindOpenAPI, openapi.New()},
		{ir.KindRepo, repo.New()},
		{ir.KindWorkflow, workflow.New()},
		{ir.KindConfig, configmodel.New()},
		{ir.KindDataset, dataset.New()},
	}
	for _, reg := range registrations {
		if err := host.Register(reg.kind, reg.p); err != nil {
			return nil, err
		}
	}
	return host, nil
}
