// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.13
//

package goraim

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSqr returns the chi-square test threshold for dof degrees of freedom at
// significance level alpha, i.e. the (1 - alpha) quantile. dof <= 0 has no
// redundancy to test and returns +Inf.
func ChiSqr(dof int, alpha float64) float64 {
	if dof <= 0 {
		return math.Inf(1)
	}
	return distuv.ChiSquared{K: float64(dof)}.Quantile(1 - alpha)
}
