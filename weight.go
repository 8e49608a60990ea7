// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.13
//

package goraim

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Weight calculates the inverse variance of one measurement from its elevation [rad]
// and carrier-to-noise ratio [dB-Hz]. The result is always finite and >= cfg.MinWeight.
func Weight(elev, snr float64, cfg *Config) (wg float64) {

	// Elevation clamped to [MinElevation, pi/2] so that 1/sin(elev) stays finite
	el := elev
	if math.IsNaN(el) || el < ToRad(cfg.MinElevation) {
		el = ToRad(cfg.MinElevation)
	}
	if el > PI/2 {
		el = PI / 2
	}
	sinel := math.Max(math.Sin(el), MIN_SIN_ELEV)

	if math.IsNaN(snr) || math.IsInf(snr, 0) || snr < MIN_SNR {
		snr = MIN_SNR
	}

	b := &cfg.Budget
	switch cfg.Weight {
	case WeightElevation: // GPS Programming book weighting
		wg = SQ(sinel) / SQ(b.SigmaZenith)
	case WeightElevationSnr:
		wg = SQ(sinel) * math.Min(snr/b.SnrMax, 1) / SQ(b.SigmaZenith)
	case WeightErrorBudget:
		varr := SQ(b.KIon / sinel)  // ionospheric delay variance
		varr += SQ(b.KTrop / sinel) // tropospheric delay variance
		varr += 1.0 / snr           // receiver noise
		varr += SQ(b.KMultipath)    // multipath
		wg = 1.0 / varr
	default:
		wg = 1.0
	}

	if math.IsNaN(wg) || math.IsInf(wg, 0) {
		wg = 1.0
	}
	if wg < cfg.MinWeight {
		wg = cfg.MinWeight
	}
	return
}

// Weights builds the diagonal weight matrix of obs
func Weights(obs []Observation, cfg *Config) *mat.DiagDense {
	w := make([]float64, len(obs))
	for i := range obs {
		w[i] = Weight(obs[i].Elev, obs[i].Snr, cfg)
		log.WithField("sat", obs[i].Sat).Tracef("elev=%8.3f, snr=%5.1f, weight=%10.6f", ToDeg(obs[i].Elev), obs[i].Snr, w[i])
	}
	return mat.NewDiagDense(len(w), w)
}
