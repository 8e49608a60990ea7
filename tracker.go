// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goraim

import (
	"math"
	"sync"
)

// Solutions of one epoch
type TrackResult struct {
	Time GTime
	Pos  *IntegrityResult // Position solution
	Vel  *IntegrityResult // Velocity solution. nil unless Kind is RangeRate
}

// Tracker carries the state from epoch to epoch.
// Process may be called from several goroutines; each epoch is applied atomically.
type Tracker struct {
	mu   sync.Mutex
	cfg  Config
	pos  *State // Carried position state
	vel  *State // Carried velocity state
	last GTime  // Time of the last accepted epoch
}

// NewTracker creates a Tracker. cfg is copied. With cfg.Kind RangeRate the velocity is
// also estimated at each accepted position.
func NewTracker(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: *cfg}, nil
}

// Process estimates one epoch and updates the carried state when the epoch is accepted.
// With Kind RangeRate both the position and the velocity must be accepted.
func (t *Tracker) Process(ep *Epoch) (*TrackResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Process noise grows with the time since the last accepted epoch
	cfg := t.cfg
	if !t.last.IsZero() {
		dt := math.Abs(ep.Time.Diff(t.last))
		for i := range cfg.ProcessNoise {
			cfg.ProcessNoise[i] *= dt
		}
	}

	tr := &TrackResult{Time: ep.Time}
	pos, err := Estimate(ep.Obs, t.pos, &cfg)
	tr.Pos = pos
	if err != nil {
		return tr, err
	}
	np := carried(pos)

	// Nothing is carried unless the velocity is also accepted
	nv := t.vel
	if t.cfg.Kind == RangeRate {
		vel, err := EstimateVelocity(ep.Obs, np.Pos(), t.vel, &cfg)
		tr.Vel = vel
		if err != nil {
			return tr, err
		}
		nv = carried(vel)
	}
	t.pos, t.vel, t.last = np, nv, ep.Time
	return tr, nil
}

// State returns a copy of the carried position state. nil before the first accepted epoch.
func (t *Tracker) State() *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos.Copy()
}

// VelState returns a copy of the carried velocity state
func (t *Tracker) VelState() *State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vel.Copy()
}

func carried(rslt *IntegrityResult) *State {
	if rslt.Refined != nil {
		return rslt.Refined.Copy()
	}
	return rslt.State.Copy()
}
