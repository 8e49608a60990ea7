// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.13
//

package goraim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Geometry linearizes the measurement model around a state estimate
type Geometry struct {
	Kind   MeasKind // Pseudorange or range-rate
	RcvPos PosXYZ   // Receiver position, needed for range-rate only
}

// Build sets up the design matrix H (n x 4) and residual vector dr (n x 1) at state x.
//
//   - Pseudorange: dr = pr - (|sat - x| + clk), H row = ((x - sat) / r, 1)
//   - Range-rate:  dr = rate - ((satVel - v).e + drift), H row = (-e, 1), e = (sat - rcv) / r
//
// Rows follow the order of obs.
func (g *Geometry) Build(obs []Observation, x mat.Vector) (*mat.Dense, *mat.VecDense, error) {
	n := len(obs)
	if n == 0 {
		return nil, nil, fmt.Errorf("no observations: %w", ErrInsufficientSatellites)
	}
	if x.Len() != NX {
		return nil, nil, fmt.Errorf("invalid state size: %d != %d", x.Len(), NX)
	}
	est := PosXYZ{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	clk := x.AtVec(3)

	H := mat.NewDense(n, NX, nil)
	dr := mat.NewVecDense(n, nil)

	for i := range obs {
		o := &obs[i]
		switch g.Kind {
		case Pseudorange:
			los := est.Sub(o.Pos) // satellite -> receiver
			r := los.Norm()
			if r < MIN_RANGE {
				return nil, nil, fmt.Errorf("%s: zero line-of-sight distance: %w", o.Sat, ErrDegenerateGeometry)
			}
			e := los.Scaled(1 / r)
			H.SetRow(i, []float64{e.X, e.Y, e.Z, 1})
			dr.SetVec(i, o.Pr-(r+clk))
		case RangeRate:
			los := o.Pos.Sub(g.RcvPos) // receiver -> satellite
			r := los.Norm()
			if r < MIN_RANGE {
				return nil, nil, fmt.Errorf("%s: zero line-of-sight distance: %w", o.Sat, ErrDegenerateGeometry)
			}
			e := los.Scaled(1 / r)
			rate := o.Vel.Sub(est).Dot(e) // relative velocity projected on the line of sight
			H.SetRow(i, []float64{-e.X, -e.Y, -e.Z, 1})
			dr.SetVec(i, o.Rate-(rate+clk))
		default:
			return nil, nil, fmt.Errorf("unknown measurement kind: %d", g.Kind)
		}
	}
	return H, dr, nil
}
