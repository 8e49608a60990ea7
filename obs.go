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
	"strconv"
)

// Type representing satellite name like "G10"
type SatType string

// Type representing satellite system like 'G'
type SysType byte

// Extract satellite system from satellite name
func (p SatType) Sys() SysType {
	if len(p) == 0 {
		return 0
	}
	return SysType(p[0])
}

// Extract satellite number from satellite name
func (p SatType) Num() int {
	if len(p) < 2 {
		return 0
	}
	i, err := strconv.Atoi(string(p[1:]))
	if err != nil {
		return 0
	}
	return i
}

// Observation of one satellite for one epoch.
// Satellite position and velocity are propagated by the caller (ephemeris is external).
type Observation struct {
	Sat  SatType // Satellite identifier
	Pos  PosXYZ  // Satellite position at transmission, ECEF [m]
	Vel  PosXYZ  // Satellite velocity, ECEF [m/s] (range-rate only)
	Pr   float64 // Pseudorange [m]
	Rate float64 // Pseudorange rate [m/s]
	Elev float64 // Elevation angle [rad]. 0 if unknown
	Snr  float64 // Carrier-to-noise ratio [dB-Hz]
}

func (o *Observation) String() string {
	return fmt.Sprintf("%s: pos=(%s) pr=%.3f rate=%.4f elev=%.2f snr=%.1f", o.Sat, o.Pos, o.Pr, o.Rate, ToDeg(o.Elev), o.Snr)
}

// Observations for all satellites in one epoch
type Epoch struct {
	Time GTime
	Obs  []Observation
}

// Sats returns the satellite names of obs, in order
func Sats(obs []Observation) []SatType {
	s := make([]SatType, len(obs))
	for i := range obs {
		s[i] = obs[i].Sat
	}
	return s
}

// FillElevations returns a copy of obs where missing (zero or non-finite) elevations
// are computed from rcvPos. obs is left untouched.
func FillElevations(obs []Observation, rcvPos PosXYZ) []Observation {
	out := make([]Observation, len(obs))
	copy(out, obs)
	if rcvPos.IsZero() {
		return out
	}
	for i := range out {
		if out[i].Elev != 0 && !math.IsNaN(out[i].Elev) && !math.IsInf(out[i].Elev, 0) {
			continue
		}
		out[i].Elev = rcvPos.Elevation(out[i].Pos)
		log.WithField("sat", out[i].Sat).Tracef("elevation computed: %.3f deg", ToDeg(out[i].Elev))
	}
	return out
}

// subset picks the observations at idx, in idx order
func subset(obs []Observation, idx []int) []Observation {
	s := make([]Observation, len(idx))
	for i, k := range idx {
		s[i] = obs[k]
	}
	return s
}
