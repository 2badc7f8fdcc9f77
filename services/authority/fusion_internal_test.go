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

import "testing"

func votes(local, remote, indeterminate int) []ProbeReport {
	var out []ProbeReport
	add := func(n int, a Authority) {
		for i := 0; i < n; i++ {
			out = append(out, ProbeReport{Probe: ProbeKind(len(out)), Vote: a})
		}
	}
	add(local, AuthorityLocal)
	add(remote, AuthorityRemote)
	add(indeterminate, AuthorityIndeterminate)
	return out
}

func TestFuseVotes(t *testing.T) {
	tests := []struct {
		name           string
		local, remote  int
		indeterminate  int
		wantAuthority  Authority
		wantConfidence float64
	}{
		{"no votes at all", 0, 0, 0, AuthorityIndeterminate, 0},
		{"all abstain", 0, 0, 6, AuthorityIndeterminate, 0},
		{"unanimous local", 6, 0, 0, AuthorityLocal, 1},
		{"unanimous remote", 0, 6, 0, AuthorityRemote, 1},
		{"tie resolves indeterminate", 3, 3, 0, AuthorityIndeterminate, 0},
		{"single decisive vote wins outright", 1, 0, 5, AuthorityLocal, 1},
		{"local majority", 4, 2, 0, AuthorityLocal, 4.0 / 6.0},
		{"remote majority with abstention", 1, 4, 1, AuthorityRemote, 4.0 / 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fuseVotes(votes(tt.local, tt.remote, tt.indeterminate))
			if got.Authority != tt.wantAuthority {
				t.Errorf("Authority = %v, want %v", got.Authority, tt.wantAuthority)
			}
			if got.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestFuseVotes_ConfidenceInvariant(t *testing.T) {
	// Exhaustive over every possible tally of the six probes.
	for local := 0; local <= 6; local++ {
		for remote := 0; remote+local <= 6; remote++ {
			got := fuseVotes(votes(local, remote, 6-local-remote))
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("fuseVotes(%d local, %d remote): confidence %v outside [0,1]",
					local, remote, got.Confidence)
			}
			if (got.Confidence == 0) != (got.Authority == AuthorityIndeterminate) {
				t.Errorf("fuseVotes(%d local, %d remote) = %+v: confidence 0 iff indeterminate violated",
					local, remote, got)
			}
			if got.Authority != AuthorityIndeterminate && got.Confidence <= 0.5 {
				t.Errorf("fuseVotes(%d local, %d remote): winner confidence %v not a strict majority",
					local, remote, got.Confidence)
			}
		}
	}
}
