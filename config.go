// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goraim

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ------------------------------------
// Enumerations (usable as flag.Value and from YAML)
// ------------------------------------

// Measurement model (0: pseudorange -> position, 1: range-rate -> velocity)
type MeasKind int

const (
	Pseudorange MeasKind = iota
	RangeRate
)

var measKindNames = []string{"pseudorange", "rangerate"}

func (p *MeasKind) Set(s string) error {
	i, err := parseEnum(s, measKindNames)
	if err != nil {
		return fmt.Errorf("invalid measurement kind: %w", err)
	}
	*p = MeasKind(i)
	return nil
}

func (p *MeasKind) String() string                  { return enumName(int(*p), measKindNames) }
func (p *MeasKind) UnmarshalText(text []byte) error { return p.Set(string(text)) }
func (p MeasKind) MarshalText() ([]byte, error)     { return []byte(p.String()), nil }
func (p *MeasKind) Type() string                    { return "meas-kind" }

// Weighting scheme of the measurements
type WeightPolicy int

const (
	WeightElevation    WeightPolicy = iota // sin^2(elev)
	WeightElevationSnr                     // sin^2(elev) * snr / snrMax
	WeightErrorBudget                      // 1 / (iono + tropo + receiver noise + multipath)
)

var weightPolicyNames = []string{"elevation", "elevation-snr", "error-budget"}

func (p *WeightPolicy) Set(s string) error {
	i, err := parseEnum(s, weightPolicyNames)
	if err != nil {
		return fmt.Errorf("invalid weight policy: %w", err)
	}
	*p = WeightPolicy(i)
	return nil
}

func (p *WeightPolicy) String() string                  { return enumName(int(*p), weightPolicyNames) }
func (p *WeightPolicy) UnmarshalText(text []byte) error { return p.Set(string(text)) }
func (p WeightPolicy) MarshalText() ([]byte, error)     { return []byte(p.String()), nil }
func (p *WeightPolicy) Type() string                    { return "weight-policy" }

// Fault exclusion search
type RaimStrategy int

const (
	Exhaustive RaimStrategy = iota // All subsets, largest size first
	Greedy                         // Drop the worst observation one at a time
)

var raimStrategyNames = []string{"exhaustive", "greedy"}

func (p *RaimStrategy) Set(s string) error {
	i, err := parseEnum(s, raimStrategyNames)
	if err != nil {
		return fmt.Errorf("invalid raim strategy: %w", err)
	}
	*p = RaimStrategy(i)
	return nil
}

func (p *RaimStrategy) String() string                  { return enumName(int(*p), raimStrategyNames) }
func (p *RaimStrategy) UnmarshalText(text []byte) error { return p.Set(string(text)) }
func (p RaimStrategy) MarshalText() ([]byte, error)     { return []byte(p.String()), nil }
func (p *RaimStrategy) Type() string                    { return "raim-strategy" }

// Selection among passing subsets of the same size
type TieBreak int

const (
	MinSSE  TieBreak = iota // Smallest weighted SSE, then GDOP
	MinGDOP                 // Smallest GDOP, then weighted SSE
)

var tieBreakNames = []string{"min-sse", "min-gdop"}

func (p *TieBreak) Set(s string) error {
	i, err := parseEnum(s, tieBreakNames)
	if err != nil {
		return fmt.Errorf("invalid tie break: %w", err)
	}
	*p = TieBreak(i)
	return nil
}

func (p *TieBreak) String() string                  { return enumName(int(*p), tieBreakNames) }
func (p *TieBreak) UnmarshalText(text []byte) error { return p.Set(string(text)) }
func (p TieBreak) MarshalText() ([]byte, error)     { return []byte(p.String()), nil }
func (p *TieBreak) Type() string                    { return "tie-break" }

// Accepts either the name or the index
func parseEnum(s string, names []string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if s == n || s == fmt.Sprint(i) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%q not in %v", s, names)
}

func enumName(i int, names []string) string {
	if i < 0 || i >= len(names) {
		return "UNKNOWN!"
	}
	return names[i]
}

// ------------------------------------
// Options
// ------------------------------------

// ErrorBudget holds the constants of the weight model
type ErrorBudget struct {
	KIon        float64 `yaml:"k_ion"`        // Ionospheric delay std at zenith [m]
	KTrop       float64 `yaml:"k_trop"`       // Tropospheric delay std at zenith [m]
	KMultipath  float64 `yaml:"k_multipath"`  // Multipath std [m]
	SigmaZenith float64 `yaml:"sigma_zenith"` // Measurement std at zenith for the elevation policies [m]
	SnrMax      float64 `yaml:"snr_max"`      // C/N0 regarded as full weight [dB-Hz]
}

// Config contains the options of one epoch estimation
type Config struct {
	Kind             MeasKind     `yaml:"kind"`               // Tracker: rangerate adds the velocity solution
	Weight           WeightPolicy `yaml:"weight"`             // Weighting scheme
	Budget           ErrorBudget  `yaml:"budget"`             // Weight model constants
	MinElevation     float64      `yaml:"min_elevation"`      // Elevation floor for weight calculation [deg]
	MinWeight        float64      `yaml:"min_weight"`         // Minimum weight value
	Strategy         RaimStrategy `yaml:"strategy"`           // Fault exclusion search
	TieBreak         TieBreak     `yaml:"tie_break"`          // Selection among passing subsets
	Alpha            float64      `yaml:"alpha"`              // Significance level of the chi-square test
	MinSats          int          `yaml:"min_sats"`           // Smallest subset size examined (m_min)
	MaxIter          int          `yaml:"max_iter"`           // Maximum number of Gauss-Newton iterations
	Tolerance        float64      `yaml:"tolerance"`          // Convergence threshold on |dx| [m] or [m/s]
	MaxExhaustiveObs int          `yaml:"max_exhaustive_obs"` // Above this count the greedy search is used
	MaxExclusions    int          `yaml:"max_exclusions"`     // Maximum number of excluded observations. 0 means no limit
	Workers          int          `yaml:"workers"`            // Parallel subset evaluations. 0 means GOMAXPROCS
	MaxGdop          float64      `yaml:"max_gdop"`           // Reject accepted solutions above this GDOP. 0 means no check
	Refine           bool         `yaml:"refine"`             // Engage the recursive refiner
	ProcessNoise     [NX]float64  `yaml:"process_noise"`      // Refiner process noise variance per second (x, y, z, clock)
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Kind:   Pseudorange,       // Position solution
		Weight: WeightErrorBudget, // Full error budget
		Budget: ErrorBudget{
			KIon:        5.0, // Ionospheric delay (L1) std
			KTrop:       3.0, // Tropospheric delay std
			KMultipath:  0.3, // Code bias / multipath std
			SigmaZenith: 0.8, // GPS Programming book value
			SnrMax:      50,  // Strong signal
		},
		MinElevation:     5.0,             // Elevation floor [deg]
		MinWeight:        DEFAULT_MIN_WGH, // Weight floor
		Strategy:         Exhaustive,      // Search all subsets
		TieBreak:         MinSSE,          // Canonical tie break
		Alpha:            DEFAULT_ALPHA,   // 99% confidence
		MinSats:          DEFAULT_MIN_SAT, // m_min
		MaxIter:          DEFAULT_LOOP,    // Iteration cap
		Tolerance:        DEFAULT_TOL,     // Convergence threshold
		MaxExhaustiveObs: DEFAULT_MAX_EXH, // 4096 subsets at most per epoch
		MaxExclusions:    0,               // Down to MinSats
		Workers:          0,               // GOMAXPROCS
		MaxGdop:          0,               // No GDOP check
		Refine:           false,           // Snapshot solutions only
		ProcessNoise:     [NX]float64{1, 1, 1, 100},
	}
}

// Validate checks the option values
func (c *Config) Validate() error {
	if c.Kind != Pseudorange && c.Kind != RangeRate {
		return fmt.Errorf("unknown measurement kind: %d", c.Kind)
	}
	if c.Weight < WeightElevation || c.Weight > WeightErrorBudget {
		return fmt.Errorf("unknown weight policy: %d", c.Weight)
	}
	if c.Strategy != Exhaustive && c.Strategy != Greedy {
		return fmt.Errorf("unknown raim strategy: %d", c.Strategy)
	}
	if c.TieBreak != MinSSE && c.TieBreak != MinGDOP {
		return fmt.Errorf("unknown tie break: %d", c.TieBreak)
	}
	if !(c.Budget.SigmaZenith > 0) {
		return fmt.Errorf("sigma zenith must be > 0: %f", c.Budget.SigmaZenith)
	}
	if !(c.Budget.SnrMax > 0) {
		return fmt.Errorf("snr max must be > 0: %f", c.Budget.SnrMax)
	}
	if c.Budget.KIon < 0 || c.Budget.KTrop < 0 || c.Budget.KMultipath < 0 {
		return fmt.Errorf("negative error budget: ion=%f, trop=%f, multipath=%f", c.Budget.KIon, c.Budget.KTrop, c.Budget.KMultipath)
	}
	if !(c.MinElevation >= 0 && c.MinElevation < 90) {
		return fmt.Errorf("min elevation must be in [0, 90): %f", c.MinElevation)
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("alpha must be in (0, 1): %f", c.Alpha)
	}
	if c.MinSats < NX {
		return fmt.Errorf("min sats must be >= %d: %d", NX, c.MinSats)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("max iter must be >= 1: %d", c.MaxIter)
	}
	if !(c.Tolerance > 0) {
		return fmt.Errorf("tolerance must be > 0: %f", c.Tolerance)
	}
	if !(c.MinWeight > 0) {
		return fmt.Errorf("min weight must be > 0: %f", c.MinWeight)
	}
	if c.MaxExclusions < 0 || c.Workers < 0 || c.MaxExhaustiveObs < 0 {
		return fmt.Errorf("negative search bound: exclusions=%d, workers=%d, exhaustive=%d", c.MaxExclusions, c.Workers, c.MaxExhaustiveObs)
	}
	for i, q := range c.ProcessNoise {
		if q < 0 {
			return fmt.Errorf("process noise[%d] must be >= 0: %f", i, q)
		}
	}
	return nil
}

// LoadConfig reads YAML options over the default values
func LoadConfig(r io.Reader) (*Config, error) {
	cfg := NewConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
