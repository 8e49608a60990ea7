// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.16
//

package goraim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Solve the observation equation using weighted least squares
// - dx = (G^t W G)^-1 G^t W dr
// - Return the error covariance matrix (G^t W G)^-1 as cov
func SolveLS(G mat.Matrix, dr mat.Vector, W mat.Matrix) (dx *mat.VecDense, cov *mat.Dense, err error) {

	n1, m1 := G.Dims()
	n2, m2 := W.Dims()
	if n1 != n2 {
		return nil, nil, fmt.Errorf("invalid matrix size. G^T(%d x %d), W(%d x %d)", m1, n1, n2, m2)
	}
	l1 := dr.Len()
	if l1 != m2 {
		return nil, nil, fmt.Errorf("invalid matrix size. W(%d x %d), dr(%d x 1)", n2, m2, l1)
	}
	if n1 < m1 {
		return nil, nil, fmt.Errorf("not enough equations: %d < %d: %w", n1, m1, ErrDegenerateGeometry)
	}

	// A (G^t W G)
	var WG mat.Dense
	WG.Mul(W, G)
	var A mat.Dense
	A.Mul(G.T(), &WG)

	// Reject collinear or otherwise ill-conditioned geometry before inverting
	if cond := mat.Cond(&A, 1); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > MAX_COND_NUMBER {
		return nil, nil, fmt.Errorf("normal matrix ill-conditioned, cond=%g: %w", cond, ErrDegenerateGeometry)
	}

	// Set (G^T W G)^-1 as the covariance matrix
	var c mat.Dense
	if err = c.Inverse(&A); err != nil {
		return nil, nil, fmt.Errorf("failed to calculate inverse of G^T W G, err=%v: %w", err, ErrDegenerateGeometry)
	}
	cov = &c

	// b (G^t W dr)
	var GtW mat.Dense
	GtW.Mul(G.T(), W)
	var b mat.VecDense
	b.MulVec(&GtW, dr)

	// x = A^-1 b
	dx = mat.NewVecDense(m1, nil)
	dx.MulVec(cov, &b)

	return
}

// Solution of one weighted least squares estimation over a fixed set of observations
type Solution struct {
	X        *mat.VecDense  // State (x, y, z, clock) in [m] or (vx, vy, vz, drift) in [m/s]
	Cov      *mat.SymDense  // Parameter covariance sigma0^2 (H^t W H)^-1
	Q        *mat.Dense     // (H^t W H)^-1
	Sigma0Sq float64        // Unit-weight variance SSE/(n-m). 1 when n == m
	H        *mat.Dense     // Design matrix at the final state
	Res      *mat.VecDense  // Residual vector at the final state
	W        *mat.DiagDense // Weight matrix
	SSE      float64        // Weighted sum of squared residuals r^t W r
	Dof      int            // n - m
	Iter     int            // Number of Gauss-Newton iterations
	Dop      Dop            // Dilution of precision values
}

// SolveWLS estimates the state from obs by Gauss-Newton iteration starting at x0.
// W must be the diagonal weight matrix of obs.
func SolveWLS(geo *Geometry, obs []Observation, W *mat.DiagDense, x0 mat.Vector, cfg *Config) (*Solution, error) {

	n := len(obs)
	if n < NX {
		return nil, fmt.Errorf("not enough satellites :%d < %d: %w", n, NX, ErrDegenerateGeometry)
	}

	x := mat.NewVecDense(NX, nil)
	if x0 != nil {
		x.CopyVec(x0)
	}

	for loop := 0; loop < cfg.MaxIter; loop++ {

		H, dr, err := geo.Build(obs, x)
		if err != nil {
			return nil, err
		}
		if loop == 0 {
			traceMat("H", H)
			traceMat("dr", dr)
		}

		dx, _, err := SolveLS(H, dr, W)
		if err != nil {
			return nil, fmt.Errorf("SolveLS() failed at loop %d, err=%w", loop+1, err)
		}
		x.AddVec(x, dx)

		log.WithFields(logrus.Fields{"loop": loop + 1, "n": n}).Tracef("x= %.4f %.4f %.4f %.4f, |dx|=%g", x.AtVec(0), x.AtVec(1), x.AtVec(2), x.AtVec(3), mat.Norm(dx, 2))

		// Check convergence
		if mat.Norm(dx, 2) < cfg.Tolerance {
			return newSolution(geo, obs, W, x, loop+1)
		}
	}

	return nil, fmt.Errorf("number of loop reached max (%d): %w", cfg.MaxIter, ErrNonConvergence)
}

// newSolution evaluates residuals, covariance and statistics at the converged state
func newSolution(geo *Geometry, obs []Observation, W *mat.DiagDense, x *mat.VecDense, iter int) (*Solution, error) {

	H, dr, err := geo.Build(obs, x)
	if err != nil {
		return nil, err
	}
	_, Q, err := SolveLS(H, dr, W)
	if err != nil {
		return nil, err
	}

	n, m := H.Dims()
	sol := &Solution{
		X:        x,
		Q:        Q,
		H:        H,
		Res:      dr,
		W:        W,
		SSE:      mat.Inner(dr, W, dr),
		Dof:      n - m,
		Iter:     iter,
		Sigma0Sq: 1,
	}
	if sol.Dof > 0 {
		sol.Sigma0Sq = sol.SSE / float64(sol.Dof)
	}
	sol.Cov = symScaled(Q, sol.Sigma0Sq)

	// Position solutions rotate the DOPs to the local frame of the estimate itself
	ref := geo.RcvPos
	if geo.Kind == Pseudorange {
		ref = PosXYZ{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	}
	sol.Dop, err = Dops(H, ref)
	if err != nil {
		return nil, err
	}
	return sol, nil
}

// ResidualCov returns the residual covariance C_r = W^-1 - H (H^t W H)^-1 H^t
func (s *Solution) ResidualCov() *mat.SymDense {
	var HQ, HQHt mat.Dense
	HQ.Mul(s.H, s.Q)
	HQHt.Mul(&HQ, s.H.T())
	n, _ := s.H.Dims()
	Cr := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -0.5 * (HQHt.At(i, j) + HQHt.At(j, i))
			if i == j {
				v += 1 / s.W.At(i, i)
			}
			Cr.SetSym(i, j, v)
		}
	}
	return Cr
}

// symScaled returns s * (A + A^t) / 2
func symScaled(A mat.Matrix, s float64) *mat.SymDense {
	n, _ := A.Dims()
	S := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			S.SetSym(i, j, s*0.5*(A.At(i, j)+A.At(j, i)))
		}
	}
	return S
}
