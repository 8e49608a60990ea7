// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.13
//

package goraim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Dilution of precision values
type Dop struct {
	GDOP float64
	PDOP float64
	HDOP float64
	VDOP float64
}

// GDOP = sqrt(trace((H^t H)^-1))
func GDOP(H mat.Matrix) (float64, error) {
	Q, err := cofactor(H)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mat.Trace(Q)), nil
}

// Dops calculates GDOP, PDOP, HDOP and VDOP from the design matrix H (n x 4).
// HDOP and VDOP use the local frame at ref.
func Dops(H mat.Matrix, ref PosXYZ) (Dop, error) {
	Q, err := cofactor(H)
	if err != nil {
		return Dop{}, err
	}
	dop := Dop{
		GDOP: math.Sqrt(mat.Trace(Q)),
		PDOP: math.Sqrt(Q.At(0, 0) + Q.At(1, 1) + Q.At(2, 2)),
	}

	// Rotate the position block to ENU: Qenu = R Qxyz R^t
	e, n, u := ENUBasis(ref)
	R := mat.NewDense(3, 3, []float64{
		e.X, e.Y, e.Z,
		n.X, n.Y, n.Z,
		u.X, u.Y, u.Z,
	})
	var RQ, Qenu mat.Dense
	RQ.Mul(R, Q.Slice(0, 3, 0, 3))
	Qenu.Mul(&RQ, R.T())
	dop.HDOP = math.Sqrt(math.Max(Qenu.At(0, 0)+Qenu.At(1, 1), 0))
	dop.VDOP = math.Sqrt(math.Max(Qenu.At(2, 2), 0))
	return dop, nil
}

// cofactor returns (H^t H)^-1
func cofactor(H mat.Matrix) (*mat.Dense, error) {
	var GtG mat.Dense
	GtG.Mul(H.T(), H)
	var Q mat.Dense
	if err := Q.Inverse(&GtG); err != nil {
		return nil, fmt.Errorf("failed to calculate inverse of matrix G^T G, err=%v: %w", err, ErrDegenerateGeometry)
	}
	return &Q, nil
}
