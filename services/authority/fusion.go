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
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Infer runs every evidence probe against the object and fuses the votes
// into one verdict with a confidence score.
//
// Probe order is irrelevant: each speculative probe fully reverts before
// the next begins, so all probes observe a consistent snapshot. An
// invalid handle yields AuthorityIndeterminate with confidence 0 plus an
// invalid-target diagnostic; Infer never aborts the caller.
func (e *Engine) Infer(ctx context.Context, id ObjectID) InferenceResult {
	return e.DetailedInfo(ctx, id).Result
}

// IsLocal reports whether the object is inferred local with confidence
// at or above threshold. A threshold <= 0 uses the configured default
// (0.6 unless reconfigured).
func (e *Engine) IsLocal(ctx context.Context, id ObjectID, threshold float64) bool {
	if threshold <= 0 {
		threshold = e.snapshot().LocalThreshold
	}
	res := e.Infer(ctx, id)
	return res.Authority == AuthorityLocal && res.Confidence >= threshold
}

// IsRemote reports whether the object is inferred remote with confidence
// at or above threshold. A threshold <= 0 uses the configured default.
func (e *Engine) IsRemote(ctx context.Context, id ObjectID, threshold float64) bool {
	if threshold <= 0 {
		threshold = e.snapshot().RemoteThreshold
	}
	res := e.Infer(ctx, id)
	return res.Authority == AuthorityRemote && res.Confidence >= threshold
}

// DetailedInfo returns every probe's individual vote plus the fused
// aggregate. The per-probe breakdown is diagnostic output only; it never
// influences the aggregate.
func (e *Engine) DetailedInfo(ctx context.Context, id ObjectID) DetailedReport {
	ctx, span := tracer.Start(ctx, "authority.Infer")
	defer span.End()
	span.SetAttributes(attribute.String("object", string(id)))

	start := time.Now()

	obj, ok := e.resolve(ctx, id)
	if !ok {
		res := InferenceResult{Authority: AuthorityIndeterminate}
		recordInference(ctx, res, time.Since(start).Seconds())
		return DetailedReport{Result: res}
	}

	votes := make([]ProbeReport, 0, len(e.probes))
	for _, p := range e.probes {
		votes = append(votes, ProbeReport{
			Probe: p.Kind(),
			Vote:  evaluateProbe(ctx, p, obj),
		})
	}

	result := fuseVotes(votes)
	span.SetAttributes(
		attribute.String("authority", result.Authority.String()),
		attribute.Float64("confidence", result.Confidence),
	)
	recordInference(ctx, result, time.Since(start).Seconds())
	return DetailedReport{Votes: votes, Result: result}
}

// fuseVotes tallies probe votes into a verdict.
//
// The winner is the authority with the strict highest count among local
// and remote; indeterminate never wins a plurality. Ties, including 0-0,
// resolve to indeterminate with confidence 0. Confidence is the winner's
// count over the non-indeterminate count, so a single decisive vote
// among five abstentions counts as a valid winner with confidence 1.0.
func fuseVotes(votes []ProbeReport) InferenceResult {
	var local, remote int
	for _, v := range votes {
		switch v.Vote {
		case AuthorityLocal:
			local++
		case AuthorityRemote:
			remote++
		}
	}

	decided := local + remote
	if decided == 0 || local == remote {
		return InferenceResult{Authority: AuthorityIndeterminate}
	}
	if local > remote {
		return InferenceResult{
			Authority:  AuthorityLocal,
			Confidence: float64(local) / float64(decided),
		}
	}
	return InferenceResult{
		Authority:  AuthorityRemote,
		Confidence: float64(remote) / float64(decided),
	}
}
