// Copyright 2025 Signia Protocol
//
// API Metrics

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signia_compile_total",
		Help: "Compilations by artifact kind and outcome.",
	}, []string{"kind", "outcome"})

	compileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signia_compile_duration_seconds",
		Help:    "Compilation wall time by artifact kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	verifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signia_verify_total",
		Help: "Bundle verifications by outcome.",
	}, []string{"outcome"})

	bundleLeafCount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signia_bundle_leaf_count",
		Help:    "Leaf counts of successfully compiled bundles.",
		Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
	})
)
