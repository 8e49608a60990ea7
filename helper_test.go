// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goraim

import (
	"fmt"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

// Azimuth and elevation of a satellite [deg]
type azel struct {
	az, el float64
}

// Spread constellation used by most tests
var skyPlot = []azel{
	{0, 85},   // G01
	{40, 30},  // G02
	{100, 55}, // G03
	{160, 25}, // G04
	{210, 45}, // G05
	{270, 20}, // G06
	{320, 60}, // G07
	{130, 15}, // G08
}

const (
	satRange  = 2.2e7  // Receiver to satellite distance [m]
	truthClk  = 3000.0 // Receiver clock bias [m]
	truthDrft = 50.0   // Receiver clock drift [m/s]
)

// Noiseless observations of a static receiver
type scenario struct {
	rcv   PosXYZ
	vel   PosXYZ
	obs   []Observation
	truth *mat.VecDense // (x, y, z, clock)
	vtrue *mat.VecDense // (vx, vy, vz, drift)
}

func newScenario(sky []azel) *scenario {
	llh := PosLLH{Lat: ToRad(35.7), Lon: ToRad(139.7), Hei: 50}
	s := &scenario{
		rcv: llh.ToXYZ(),
		vel: PosXYZ{X: 10, Y: -5, Z: 2},
	}
	s.truth = mat.NewVecDense(NX, []float64{s.rcv.X, s.rcv.Y, s.rcv.Z, truthClk})
	s.vtrue = mat.NewVecDense(NX, []float64{s.vel.X, s.vel.Y, s.vel.Z, truthDrft})

	e, n, u := ENUBasis(s.rcv)
	for i, ae := range sky {
		sa, ca := math.Sincos(ToRad(ae.az))
		se, ce := math.Sincos(ToRad(ae.el))
		d := PosXYZ{
			X: e.X*ce*sa + n.X*ce*ca + u.X*se,
			Y: e.Y*ce*sa + n.Y*ce*ca + u.Y*se,
			Z: e.Z*ce*sa + n.Z*ce*ca + u.Z*se,
		}
		pos := PosXYZ{X: s.rcv.X + satRange*d.X, Y: s.rcv.Y + satRange*d.Y, Z: s.rcv.Z + satRange*d.Z}
		vel := PosXYZ{X: 1000 * math.Sin(float64(i)), Y: 2000 * math.Cos(float64(i)), Z: 500}
		los := pos.Sub(s.rcv)
		r := los.Norm()
		s.obs = append(s.obs, Observation{
			Sat:  SatType(fmt.Sprintf("G%02d", i+1)),
			Pos:  pos,
			Vel:  vel,
			Pr:   r + truthClk,
			Rate: vel.Sub(s.vel).Dot(los.Scaled(1/r)) + truthDrft,
			Elev: ToRad(ae.el),
			Snr:  45,
		})
	}
	return s
}

// bias adds b [m] to the pseudorange of sat
func (s *scenario) bias(sat SatType, b float64) *scenario {
	for i := range s.obs {
		if s.obs[i].Sat == sat {
			s.obs[i].Pr += b
		}
	}
	return s
}

// prior returns a state 1 km and 100 m (clock) off the truth
func (s *scenario) prior() *State {
	x := mat.VecDenseCopyOf(s.truth)
	x.SetVec(0, x.AtVec(0)+1000)
	x.SetVec(1, x.AtVec(1)-1000)
	x.SetVec(3, x.AtVec(3)-100)
	return &State{X: x}
}

// checkVec compares element by element with an absolute tolerance
func checkVec(t *testing.T, name string, got, want mat.Vector, tol float64) {
	t.Helper()
	if got.Len() != want.Len() {
		t.Fatalf("%s: length %d != %d", name, got.Len(), want.Len())
	}
	for i := 0; i < got.Len(); i++ {
		if !scalar.EqualWithinAbs(got.AtVec(i), want.AtVec(i), tol) {
			t.Errorf("%s:\ngot  %v\nwant %v", name, mat.Formatted(got.T()), mat.Formatted(want.T()))
			return
		}
	}
}
