// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package goraim

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Estimate computes the receiver position and clock bias of one epoch protected by
// RAIM/FDE. prior (may be nil) gives the initial state and, with cfg.Refine, the state
// fused with the snapshot solution. cfg nil means NewConfig().
//
// With ErrNoValidSubset the result of the rejected global solution is also returned.
func Estimate(obs []Observation, prior *State, cfg *Config) (*IntegrityResult, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	geo := &Geometry{Kind: Pseudorange}
	if prior != nil && prior.X != nil {
		geo.RcvPos = prior.Pos()
	}
	return estimate(geo, obs, prior, cfg)
}

// EstimateVelocity computes the receiver velocity and clock drift of one epoch from the
// pseudorange rates, at the receiver position rcvPos.
func EstimateVelocity(obs []Observation, rcvPos PosXYZ, prior *State, cfg *Config) (*IntegrityResult, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rcvPos.IsZero() {
		return nil, fmt.Errorf("receiver position not set: %w", ErrDegenerateGeometry)
	}
	return estimate(&Geometry{Kind: RangeRate, RcvPos: rcvPos}, obs, prior, cfg)
}

func estimate(geo *Geometry, obs []Observation, prior *State, cfg *Config) (*IntegrityResult, error) {

	// Elevations for weighting, when the feed did not provide them
	obs = FillElevations(obs, geo.RcvPos)

	x0 := mat.NewVecDense(NX, nil)
	if prior != nil && prior.X != nil {
		x0.CopyVec(prior.X)
	}

	rslt, err := Monitor(geo, obs, x0, cfg)
	if err != nil {
		return rslt, fmt.Errorf("Monitor() failed, err=%w", err)
	}
	log.WithFields(logrus.Fields{"status": rslt.Status, "ns": len(rslt.Active), "dof": rslt.Dof, "iter": rslt.Iterations}).Debugf("x= %.4f %.4f %.4f %.4f", rslt.State.X.AtVec(0), rslt.State.X.AtVec(1), rslt.State.X.AtVec(2), rslt.State.X.AtVec(3))

	if cfg.Refine && prior != nil && prior.X != nil && prior.P != nil {
		rslt.Refined, err = refine(prior, rslt.State, cfg)
		if err != nil {
			log.Warnf("refine() failed, snapshot solution kept, err=%v", err)
		}
	}
	return rslt, nil
}

// refine fuses the snapshot solution (z = x, H = I, R = its covariance) into prior
func refine(prior, snap *State, cfg *Config) (*State, error) {
	H := mat.NewDiagDense(NX, nil)
	Q := mat.NewDiagDense(NX, nil)
	for i := 0; i < NX; i++ {
		H.SetDiag(i, 1)
		Q.SetDiag(i, cfg.ProcessNoise[i])
	}
	return Update(prior, snap.X, H, snap.P, Q)
}
