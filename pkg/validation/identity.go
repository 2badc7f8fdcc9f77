// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for identifiers
// that cross component boundaries.
//
// Actor and object identifiers end up in log attributes, metric labels,
// and cache keys. Validating them at the boundary keeps malformed or
// hostile identifiers out of every downstream system.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// actorPattern matches valid actor identifiers.
// Allows: lowercase alphanumerics, then dots, hyphens, underscores.
// Max length: 64 characters.
var actorPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._\-]{0,63}$`)

// objectPattern matches valid object identifiers (UUIDs and slugs).
// Max length: 128 characters.
var objectPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,127}$`)

// ValidateActorID validates an actor identifier.
//
// Valid actor IDs:
//   - 1-64 characters
//   - start with a lowercase letter or digit
//   - contain only lowercase letters, digits, dots, hyphens, underscores
//
// Example:
//
//	if err := validation.ValidateActorID(actor); err != nil {
//	    return fmt.Errorf("invalid actor: %w", err)
//	}
func ValidateActorID(actor string) error {
	if actor == "" {
		return fmt.Errorf("actor ID cannot be empty")
	}
	if !actorPattern.MatchString(actor) {
		return fmt.Errorf("invalid actor ID format: %q (must be 1-64 lowercase alphanumeric chars, dots, hyphens, or underscores)", actor)
	}
	return nil
}

// ValidateObjectID validates an object identifier.
func ValidateObjectID(id string) error {
	if id == "" {
		return fmt.Errorf("object ID cannot be empty")
	}
	if !objectPattern.MatchString(id) {
		return fmt.Errorf("invalid object ID format: %q (must be 1-128 alphanumeric chars, dots, hyphens, or underscores)", id)
	}
	return nil
}

// ValidateObjectIDs validates multiple object identifiers.
// Returns an error listing all invalid IDs if any fail validation.
func ValidateObjectIDs(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateObjectID(id); err != nil {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid object IDs: %s", strings.Join(invalid, ", "))
	}
	return nil
}
