// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package authority

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for engine operations.
var (
	tracer = otel.Tracer("aleutiansim.authority")
	meter  = otel.Meter("aleutiansim.authority")
)

// Metrics for engine operations. All use the "authority_" prefix.
var (
	probeVotes      metric.Int64Counter
	inferences      metric.Int64Counter
	inferLatency    metric.Float64Histogram
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	cacheEvictions  metric.Int64Counter
	cacheSweeps     metric.Int64Counter
	activeSessions  metric.Int64UpDownCounter
	shadowRunsTotal metric.Int64Counter
	diagnostics     metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		probeVotes, err = meter.Int64Counter(
			"authority_probe_votes_total",
			metric.WithDescription("Total probe evaluations by probe and vote"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inferences, err = meter.Int64Counter(
			"authority_inferences_total",
			metric.WithDescription("Total fused inferences by verdict"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		inferLatency, err = meter.Float64Histogram(
			"authority_infer_duration_seconds",
			metric.WithDescription("Duration of full fusion inferences"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheHits, err = meter.Int64Counter(
			"authority_cache_hits_total",
			metric.WithDescription("Total result cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"authority_cache_misses_total",
			metric.WithDescription("Total result cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheEvictions, err = meter.Int64Counter(
			"authority_cache_evictions_total",
			metric.WithDescription("Total entries evicted as stale or dead"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheSweeps, err = meter.Int64Counter(
			"authority_cache_sweeps_total",
			metric.WithDescription("Total opportunistic cache sweeps"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		activeSessions, err = meter.Int64UpDownCounter(
			"authority_sampling_sessions_active",
			metric.WithDescription("Currently open sampling-window sessions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		shadowRunsTotal, err = meter.Int64Counter(
			"authority_shadow_runs_total",
			metric.WithDescription("Total shadow simulation runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		diagnostics, err = meter.Int64Counter(
			"authority_diagnostics_total",
			metric.WithDescription("Total diagnostics surfaced by code"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordProbeVote(ctx context.Context, kind ProbeKind, vote Authority) {
	if initMetrics() != nil {
		return
	}
	probeVotes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("probe", kind.String()),
		attribute.String("vote", vote.String()),
	))
}

func recordInference(ctx context.Context, res InferenceResult, seconds float64) {
	if initMetrics() != nil {
		return
	}
	inferences.Add(ctx, 1, metric.WithAttributes(
		attribute.String("authority", res.Authority.String()),
	))
	inferLatency.Record(ctx, seconds)
}

func recordCacheHit(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheHits.Add(ctx, 1)
}

func recordCacheMiss(ctx context.Context) {
	if initMetrics() != nil {
		return
	}
	cacheMisses.Add(ctx, 1)
}

func recordCacheSweep(ctx context.Context, evicted int) {
	if initMetrics() != nil {
		return
	}
	cacheSweeps.Add(ctx, 1)
	if evicted > 0 {
		cacheEvictions.Add(ctx, int64(evicted))
	}
}

func recordSessionDelta(ctx context.Context, delta int64) {
	if initMetrics() != nil {
		return
	}
	activeSessions.Add(ctx, delta)
}

func recordShadowRun(ctx context.Context, outcome string) {
	if initMetrics() != nil {
		return
	}
	shadowRunsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func recordDiagnostic(ctx context.Context, code DiagnosticCode) {
	if initMetrics() != nil {
		return
	}
	diagnostics.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", string(code)),
	))
}
