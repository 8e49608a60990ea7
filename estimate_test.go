// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goraim

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEstimateFourSatellites(t *testing.T) {
	s := newScenario([]azel{skyPlot[0], skyPlot[1], skyPlot[4], skyPlot[5]})

	// Default options, starting from the center of the earth
	rslt, err := Estimate(s.obs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Status != StatusOK || len(rslt.Active) != 4 {
		t.Errorf("status = %s, active = %v", rslt.Status, rslt.Active)
	}
	checkVec(t, "x", rslt.State.X, s.truth, 1e-6)
	if rslt.Monitored() || rslt.StatusString() != "UNMONITORED" {
		t.Errorf("monitored = %v, status = %s", rslt.Monitored(), rslt.StatusString())
	}
	if got := rslt.State.ClockBias(); math.Abs(got-truthClk/C) > 1e-11 {
		t.Errorf("clock bias = %g s, want %g s", got, truthClk/C)
	}
	if rslt.Refined != nil {
		t.Error("refined without Refine")
	}
}

func TestEstimateLargeBias(t *testing.T) {
	s := newScenario(skyPlot[:6]).bias("G03", 50000)

	// Zero initial state
	rslt, err := Estimate(s.obs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Status != StatusExcluded || len(rslt.ExSats) != 1 || rslt.ExSats[0] != "G03" {
		t.Fatalf("status = %s, excluded = %v", rslt.Status, rslt.ExSats)
	}
	if rslt.Dof != 1 || !rslt.Monitored() {
		t.Errorf("dof = %d", rslt.Dof)
	}
	checkVec(t, "x", rslt.State.X, s.truth, 1e-6)
}

func TestEstimateUnmonitored(t *testing.T) {
	s := newScenario([]azel{skyPlot[0], skyPlot[1], skyPlot[4], skyPlot[5]}).bias("G01", 50000)

	// Nothing to test with four observations: the fault goes through
	rslt, err := Estimate(s.obs, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Status != StatusOK || len(rslt.Excluded) != 0 {
		t.Errorf("status = %s, excluded = %v", rslt.Status, rslt.ExSats)
	}
	if rslt.Monitored() || rslt.Dof != 0 || !math.IsInf(rslt.Threshold, 1) {
		t.Errorf("monitored = %v, dof = %d, threshold = %g", rslt.Monitored(), rslt.Dof, rslt.Threshold)
	}
	if got := rslt.StatusString(); got != "UNMONITORED" {
		t.Errorf("status string = %q", got)
	}
	if got := rslt.Status.String(); got != "OK" {
		t.Errorf("status = %q", got)
	}
}

func TestEstimateGlobalFailure(t *testing.T) {
	for _, strategy := range []RaimStrategy{Exhaustive, Greedy} {
		s := newScenario(skyPlot).bias("G05", 5000)
		cfg := NewConfig()
		cfg.Strategy = strategy
		cfg.MaxIter = 2

		// The global solve does not converge: reported as such, no subset search
		rslt, err := Estimate(s.obs, nil, cfg)
		if !errors.Is(err, ErrNonConvergence) || errors.Is(err, ErrNoValidSubset) {
			t.Errorf("%s: err = %v, want ErrNonConvergence", strategy.String(), err)
		}
		if rslt != nil {
			t.Errorf("%s: result = %+v", strategy.String(), rslt)
		}
	}
}

func TestEstimateNoElevations(t *testing.T) {
	s := newScenario(skyPlot)
	for i := range s.obs {
		s.obs[i].Elev = 0
	}
	rslt, err := Estimate(s.obs, s.prior(), nil)
	if err != nil {
		t.Fatal(err)
	}
	checkVec(t, "x", rslt.State.X, s.truth, 1e-3)

	// Input is left untouched
	for i := range s.obs {
		if s.obs[i].Elev != 0 {
			t.Fatalf("%s: elevation written back", s.obs[i].Sat)
		}
	}
}

func TestFillElevations(t *testing.T) {
	s := newScenario(skyPlot)
	in := make([]Observation, len(s.obs))
	copy(in, s.obs)
	in[2].Elev = 0
	in[5].Elev = math.NaN()
	out := FillElevations(in, s.rcv)
	for i := range out {
		if math.Abs(out[i].Elev-ToRad(skyPlot[i].el)) > 1e-6 {
			t.Errorf("%s: elevation %g deg, want %g", out[i].Sat, ToDeg(out[i].Elev), skyPlot[i].el)
		}
	}
	if in[2].Elev != 0 {
		t.Error("input modified")
	}
}

func TestEstimateErrors(t *testing.T) {
	s := newScenario(skyPlot[:3])
	if _, err := Estimate(s.obs, nil, nil); !errors.Is(err, ErrInsufficientSatellites) {
		t.Errorf("err = %v, want ErrInsufficientSatellites", err)
	}

	cfg := NewConfig()
	cfg.MaxIter = 1
	s = newScenario(skyPlot[:4])
	if _, err := Estimate(s.obs, nil, cfg); !errors.Is(err, ErrNonConvergence) {
		t.Errorf("err = %v, want ErrNonConvergence", err)
	}

	cfg = NewConfig()
	cfg.Alpha = 2
	if _, err := Estimate(s.obs, nil, cfg); err == nil {
		t.Error("invalid config accepted")
	}

	s = newScenario(skyPlot[:5]).bias("G01", 2000)
	rslt, err := Estimate(s.obs, s.prior(), nil)
	if !errors.Is(err, ErrNoValidSubset) || rslt == nil || rslt.Status != StatusNoValidSubset {
		t.Errorf("err = %v, result = %v", err, rslt)
	}
}

func TestEstimateVelocity(t *testing.T) {
	s := newScenario(skyPlot)
	rslt, err := EstimateVelocity(s.obs, s.rcv, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Status != StatusOK {
		t.Errorf("status = %s", rslt.Status)
	}
	checkVec(t, "v", rslt.State.X, s.vtrue, 1e-6)

	// Faulty rate on G04
	cfg := NewConfig()
	cfg.Weight = WeightElevation
	s.obs[3].Rate += 100
	rslt, err = EstimateVelocity(s.obs, s.rcv, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Status != StatusExcluded || len(rslt.ExSats) != 1 || rslt.ExSats[0] != "G04" {
		t.Errorf("status = %s, excluded = %v", rslt.Status, rslt.ExSats)
	}
	checkVec(t, "v", rslt.State.X, s.vtrue, 1e-6)

	if _, err := EstimateVelocity(s.obs, PosXYZ{}, nil, nil); !errors.Is(err, ErrDegenerateGeometry) {
		t.Errorf("err = %v, want ErrDegenerateGeometry", err)
	}
}

func TestEstimateRefine(t *testing.T) {
	s := newScenario(skyPlot)
	cfg := NewConfig()
	cfg.Refine = true

	// No prior covariance: snapshot only
	rslt, err := Estimate(s.obs, s.prior(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Refined != nil {
		t.Error("refined without prior covariance")
	}

	// A prior far off with a tight covariance pulls the refined state away from the snapshot
	prior := s.prior()
	prior.P = symDiag(NX, 1e-6)
	for i := range s.obs {
		s.obs[i].Pr += float64(i%3) - 1 // sigma0 > 0
	}
	cfg.ProcessNoise = [NX]float64{}
	rslt, err = Estimate(s.obs, prior, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if rslt.Refined == nil {
		t.Fatal("not refined")
	}
	var d mat.VecDense
	d.SubVec(rslt.Refined.X, prior.X)
	if mat.Norm(&d, 2) > 1 {
		t.Errorf("refined state left the tight prior: %g", mat.Norm(&d, 2))
	}
}
