// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package goraim

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBuildAtTruth(t *testing.T) {
	s := newScenario(skyPlot)

	for _, tc := range []struct {
		name string
		geo  *Geometry
		x    *mat.VecDense
		tol  float64
	}{
		{"pseudorange", &Geometry{Kind: Pseudorange}, s.truth, 1e-6},
		{"rangerate", &Geometry{Kind: RangeRate, RcvPos: s.rcv}, s.vtrue, 1e-9},
	} {
		H, dr, err := tc.geo.Build(s.obs, tc.x)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		n, m := H.Dims()
		if n != len(s.obs) || m != NX {
			t.Fatalf("%s: H is %d x %d", tc.name, n, m)
		}
		for i := 0; i < n; i++ {
			if math.Abs(dr.AtVec(i)) > tc.tol {
				t.Errorf("%s: residual[%d] = %g", tc.name, i, dr.AtVec(i))
			}
			los := math.Sqrt(SQ(H.At(i, 0)) + SQ(H.At(i, 1)) + SQ(H.At(i, 2)))
			if math.Abs(los-1) > 1e-12 || H.At(i, 3) != 1 {
				t.Errorf("%s: row %d = %v", tc.name, i, mat.Formatted(H.RowView(i).T()))
			}
		}
	}
}

func TestBuildZeroRange(t *testing.T) {
	s := newScenario(skyPlot[:4])
	x := mat.NewVecDense(NX, []float64{s.obs[0].Pos.X, s.obs[0].Pos.Y, s.obs[0].Pos.Z, 0})
	_, _, err := (&Geometry{Kind: Pseudorange}).Build(s.obs, x)
	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestSolveLSDegenerate(t *testing.T) {
	// Four identical lines of sight
	G := mat.NewDense(4, NX, []float64{
		0, 0, 1, 1,
		0, 0, 1, 1,
		0, 0, 1, 1,
		0, 0, 1, 1,
	})
	dr := mat.NewVecDense(4, nil)
	W := mat.NewDiagDense(4, []float64{1, 1, 1, 1})
	if _, _, err := SolveLS(G, dr, W); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}

	// Fewer equations than unknowns
	if _, _, err := SolveLS(G.Slice(0, 3, 0, NX), mat.NewVecDense(3, nil), mat.NewDiagDense(3, []float64{1, 1, 1})); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestSolveWLSRoundTrip(t *testing.T) {
	s := newScenario(skyPlot)
	cfg := NewConfig()
	geo := &Geometry{Kind: Pseudorange}

	// From the center of the earth
	sol, err := SolveWLS(geo, s.obs, Weights(s.obs, cfg), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	checkVec(t, "x", sol.X, s.truth, 1e-3)
	if sol.Dof != len(s.obs)-NX {
		t.Errorf("dof = %d", sol.Dof)
	}
	if sol.SSE > 1e-6 {
		t.Errorf("sse = %g", sol.SSE)
	}
	if sol.Iter < 2 || sol.Iter > cfg.MaxIter {
		t.Errorf("iter = %d", sol.Iter)
	}
}

func TestSolveWLSVelocity(t *testing.T) {
	s := newScenario(skyPlot)
	cfg := NewConfig()
	geo := &Geometry{Kind: RangeRate, RcvPos: s.rcv}
	sol, err := SolveWLS(geo, s.obs, Weights(s.obs, cfg), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	checkVec(t, "v", sol.X, s.vtrue, 1e-6)
}

func TestSolveWLSNonConvergence(t *testing.T) {
	s := newScenario(skyPlot)
	cfg := NewConfig()
	cfg.MaxIter = 1
	_, err := SolveWLS(&Geometry{Kind: Pseudorange}, s.obs, Weights(s.obs, cfg), nil, cfg)
	if !errors.Is(err, ErrNonConvergence) {
		t.Errorf("err = %v, want ErrNonConvergence", err)
	}
}

func TestSolutionStatistics(t *testing.T) {
	s := newScenario(skyPlot)
	cfg := NewConfig()

	// Residuals of a few metres so that sigma0 is not zero
	for i, d := range []float64{1.5, -2, 0.5, 3, -1, 2.5, -0.7, 1} {
		s.obs[i].Pr += d
	}
	W := Weights(s.obs, cfg)
	sol, err := SolveWLS(&Geometry{Kind: Pseudorange}, s.obs, W, s.truth, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if want := mat.Inner(sol.Res, W, sol.Res); math.Abs(sol.SSE-want) > 1e-9 {
		t.Errorf("sse = %g, want %g", sol.SSE, want)
	}
	if want := sol.SSE / float64(sol.Dof); math.Abs(sol.Sigma0Sq-want) > 1e-12 {
		t.Errorf("sigma0^2 = %g, want %g", sol.Sigma0Sq, want)
	}
	for i := 0; i < NX; i++ {
		for j := 0; j < NX; j++ {
			want := sol.Sigma0Sq * sol.Q.At(i, j)
			if math.Abs(sol.Cov.At(i, j)-want) > 1e-9*math.Abs(want)+1e-12 {
				t.Errorf("cov(%d,%d) = %g, want %g", i, j, sol.Cov.At(i, j), want)
			}
		}
	}

	// tr(C_r W) = n - m
	Cr := sol.ResidualCov()
	var CrW mat.Dense
	CrW.Mul(Cr, W)
	if tr := mat.Trace(&CrW); math.Abs(tr-float64(sol.Dof)) > 1e-6 {
		t.Errorf("trace(Cr W) = %g, want %d", tr, sol.Dof)
	}
	for i := 0; i < Cr.SymmetricDim(); i++ {
		if Cr.At(i, i) < -1e-9 {
			t.Errorf("Cr(%d,%d) = %g < 0", i, i, Cr.At(i, i))
		}
	}
}

func TestSolutionExactlyDetermined(t *testing.T) {
	s := newScenario([]azel{skyPlot[0], skyPlot[1], skyPlot[4], skyPlot[5]})
	cfg := NewConfig()
	sol, err := SolveWLS(&Geometry{Kind: Pseudorange}, s.obs, Weights(s.obs, cfg), nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	checkVec(t, "x", sol.X, s.truth, 1e-3)
	if sol.Dof != 0 || sol.Sigma0Sq != 1 {
		t.Errorf("dof = %d, sigma0^2 = %g", sol.Dof, sol.Sigma0Sq)
	}
}
