// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package goraim

import "errors"

// Error kinds surfaced by Estimate. Every error returned from the estimation path
// wraps exactly one of these, so callers can branch with errors.Is.
var (
	// Fewer observations than the smallest subset allowed
	ErrInsufficientSatellites = errors.New("insufficient satellites")

	// Singular or ill-conditioned normal matrix, or zero line-of-sight distance
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// Iteration cap reached without meeting the tolerance
	ErrNonConvergence = errors.New("non convergence")

	// Integrity test failed for every subset down to the minimum size
	ErrNoValidSubset = errors.New("no valid subset")
)

// isNonViable reports whether err only disqualifies one candidate subset
// (the search goes on) rather than the whole epoch.
func isNonViable(err error) bool {
	return errors.Is(err, ErrDegenerateGeometry) || errors.Is(err, ErrNonConvergence)
}
