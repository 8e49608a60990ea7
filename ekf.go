// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Implements the recursive refiner (extended Kalman filter measurement update).

package goraim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// State estimate with covariance
// - Position mode: (x, y, z, clock) in [m]
// - Velocity mode: (vx, vy, vz, drift) in [m/s]
type State struct {
	X *mat.VecDense // State vector
	P *mat.SymDense // Error covariance. nil if unknown
}

// Copy returns a deep copy of s
func (s *State) Copy() *State {
	if s == nil {
		return nil
	}
	c := &State{}
	if s.X != nil {
		c.X = mat.VecDenseCopyOf(s.X)
	}
	if s.P != nil {
		n := s.P.SymmetricDim()
		c.P = mat.NewSymDense(n, nil)
		c.P.CopySym(s.P)
	}
	return c
}

// Pos returns the position part of a position mode state
func (s *State) Pos() PosXYZ {
	return PosXYZ{X: s.X.AtVec(0), Y: s.X.AtVec(1), Z: s.X.AtVec(2)}
}

// ClockBias returns the receiver clock bias in [s] (position mode) or drift in [s/s]
func (s *State) ClockBias() float64 {
	return s.X.AtVec(3) / C
}

// Update performs one time update and one measurement update
//
//	P = P + Q
//	K = P H^t (H P H^t + R)^-1
//	x = x + K (z - H x)
//	P = (I - K H) P
//
// Q may be nil. prior is left untouched.
func Update(prior *State, z mat.Vector, H, R, Q mat.Matrix) (*State, error) {

	if prior == nil || prior.X == nil || prior.P == nil {
		return nil, fmt.Errorf("prior state or covariance not set")
	}
	nx := prior.X.Len()
	nz := z.Len()
	if r, c := H.Dims(); r != nz || c != nx {
		return nil, fmt.Errorf("invalid matrix size. H(%d x %d), z(%d), x(%d)", r, c, nz, nx)
	}
	if r, c := R.Dims(); r != nz || c != nz {
		return nil, fmt.Errorf("invalid matrix size. R(%d x %d), z(%d)", r, c, nz)
	}

	// Time update
	var P mat.Dense
	P.CloneFrom(prior.P)
	if Q != nil {
		if r, c := Q.Dims(); r != nx || c != nx {
			return nil, fmt.Errorf("invalid matrix size. Q(%d x %d), x(%d)", r, c, nx)
		}
		P.Add(&P, Q)
	}

	K, err := makeK(&P, H, R)
	if err != nil {
		return nil, err
	}

	// Innovation
	var Hx, dy mat.VecDense
	Hx.MulVec(H, prior.X)
	dy.SubVec(z, &Hx)

	x := updateX(prior.X, K, &dy)
	Pn := updateP(K, H, &P)

	traceMat("K", K)
	traceMat("P", Pn)

	return &State{X: x, P: symScaled(Pn, 1)}, nil
}

// makeK calculates the Kalman gain K = P H^t (H P H^t + R)^-1
func makeK(P, H, R mat.Matrix) (*mat.Dense, error) {
	var A, B, D, K mat.Dense
	A.Mul(H, P)
	B.Mul(&A, H.T())
	B.Add(&B, R)
	var Binv mat.Dense
	if err := Binv.Inverse(&B); err != nil {
		return nil, fmt.Errorf("failed to calculate inverse of H P H^t + R, err=%v: %w", err, ErrDegenerateGeometry)
	}
	D.Mul(P, H.T())
	K.Mul(&D, &Binv)
	return &K, nil
}

// updateX calculates x' = x + K dy
func updateX(x mat.Vector, K mat.Matrix, dy mat.Vector) *mat.VecDense {
	var dx, x2 mat.VecDense
	dx.MulVec(K, dy)
	x2.AddVec(x, &dx)
	return &x2
}

// updateP calculates P' = (I - K H) P
func updateP(K, H, P mat.Matrix) *mat.Dense {
	nx, _ := K.Dims()
	I := mat.NewDiagDense(nx, nil)
	for j := 0; j < nx; j++ {
		I.SetDiag(j, 1)
	}
	var A, B, Pn mat.Dense
	A.Mul(K, H)
	B.Sub(I, &A)
	Pn.Mul(&B, P)
	return &Pn
}
