// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.12
//

package goraim

const (
	PI = 3.1415926535897932  // Pi
	C  = 2.99792458e8        // Speed of light [m/s]
	Re = 6378137.0           // Earth's radius [m]
	Fe = 1.0 / 298.257223563 // Earth's flattening
)

// Number of unknowns (3 position or velocity components + 1 clock term)
const NX = 4

// Estimation limits
const (
	MIN_RANGE       = 1e-6 // Satellite-to-receiver distance regarded as zero [m]
	MAX_COND_NUMBER = 1e12 // Normal matrices above this condition number are ill-conditioned
	MIN_SNR         = 1.0  // Floor for carrier-to-noise ratio [dB-Hz]
	MIN_SIN_ELEV    = 1e-3 // Floor for sin(elevation), applied after the elevation mask
	DEFAULT_ALPHA   = 0.01 // Default significance level of the chi-square test
	DEFAULT_TOL     = 1e-4 // Default convergence threshold
	DEFAULT_LOOP    = 10   // Default maximum number of Gauss-Newton iterations
	DEFAULT_MIN_SAT = NX   // Default smallest subset examined by fault exclusion
	DEFAULT_MAX_EXH = 12   // Default largest observation count searched exhaustively
	DEFAULT_MIN_WGH = 1e-6 // Default minimum weight value
)
