// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

// Implements receiver autonomous integrity monitoring with fault detection and exclusion (RAIM/FDE).

package goraim

import (
	"fmt"
	"math"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/combin"
)

// Integrity status of an epoch solution.
// StatusOK with Dof == 0 (four observations) is accepted without any test; see
// IntegrityResult.Monitored.
type Status int

const (
	StatusOK            Status = iota // Full observation set passed the test, or had nothing to test
	StatusExcluded                    // A fault was detected and excluded
	StatusNoValidSubset               // A fault was detected but no subset passed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusExcluded:
		return "EXCLUDED"
	case StatusNoValidSubset:
		return "NO_VALID_SUBSET"
	default:
		return "UNKNOWN!"
	}
}

// IntegrityResult contains the accepted (or, with StatusNoValidSubset, the rejected
// global) solution of one epoch
type IntegrityResult struct {
	Status      Status        // Integrity status
	Active      []int         // Indices of the observations used, ascending
	Excluded    []int         // Indices of the excluded observations, ascending
	Sats        []SatType     // Satellites used
	ExSats      []SatType     // Satellites excluded
	Solution    *Solution     // Least squares solution over Active
	State       *State        // Solution state and covariance
	Residuals   *mat.VecDense // Residuals over Active
	SSE         float64       // Weighted sum of squared residuals
	Threshold   float64       // Chi-square threshold for Dof. +Inf when Dof == 0
	Dof         int           // Degrees of freedom |Active| - 4
	GDOP        float64       // Geometric dilution of precision over Active
	Dop         Dop           // All DOP values over Active
	ResidualCov *mat.SymDense // W^-1 - H (H^t W H)^-1 H^t over Active
	Refined     *State        // Recursive refiner output, nil unless engaged
	Iterations  int           // Gauss-Newton iterations of the accepted solve
}

// Monitored reports whether the solution had redundancy to be tested at all
func (r *IntegrityResult) Monitored() bool {
	return r.Dof > 0
}

// StatusString is Status, with "UNMONITORED" in place of an untested "OK"
func (r *IntegrityResult) StatusString() string {
	if r.Status == StatusOK && !r.Monitored() {
		return "UNMONITORED"
	}
	return r.Status.String()
}

// candidate is the immutable evaluation record of one observation subset
type candidate struct {
	index     int       // Position in the enumeration order
	active    []int     // Observation indices, ascending
	sol       *Solution // nil if err != nil
	err       error     // Non-viable subset
	threshold float64   // Chi-square threshold of the subset
	pass      bool      // Redundant and SSE <= threshold
}

func (c *candidate) gdop() float64 {
	if c.sol == nil {
		return math.Inf(1)
	}
	return c.sol.Dop.GDOP
}

// Monitor computes the solution of obs and protects it by fault detection and exclusion
func Monitor(geo *Geometry, obs []Observation, x0 mat.Vector, cfg *Config) (*IntegrityResult, error) {

	n := len(obs)
	if n < cfg.MinSats {
		return nil, fmt.Errorf("not enough satellites: %d < %d: %w", n, cfg.MinSats, ErrInsufficientSatellites)
	}

	// Global solution over all observations
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	global := evaluate(geo, obs, all, 0, x0, cfg)
	if global.err != nil {
		return nil, fmt.Errorf("global solution failed, err=%w", global.err)
	}
	log.WithFields(logrus.Fields{"n": n, "sse": global.sol.SSE, "threshold": global.threshold, "dof": global.sol.Dof}).Debug("chi-square test")
	if global.sol.Dof == 0 || global.pass {
		return screenGdop(newIntegrityResult(obs, &global, StatusOK), cfg)
	}

	var best *candidate
	strategy := cfg.Strategy
	if strategy == Exhaustive && n > cfg.MaxExhaustiveObs {
		log.Debugf("%d observations > %d, exhaustive search replaced by greedy", n, cfg.MaxExhaustiveObs)
		strategy = Greedy
	}
	switch strategy {
	case Exhaustive:
		best = searchExhaustive(geo, obs, global.sol.X, cfg)
	case Greedy:
		best = searchGreedy(geo, obs, &global, cfg)
	}

	if best == nil {
		err := fmt.Errorf("fault detected in %d observations (sse=%.3f > %.3f), no subset down to %d passed: %w",
			n, global.sol.SSE, global.threshold, minSubsetSize(n, cfg), ErrNoValidSubset)
		return newIntegrityResult(obs, &global, StatusNoValidSubset), err
	}

	rslt := newIntegrityResult(obs, best, StatusExcluded)
	log.WithFields(logrus.Fields{"excluded": rslt.ExSats, "sse": rslt.SSE, "gdop": rslt.GDOP}).Debug("excluded by raim")
	return screenGdop(rslt, cfg)
}

// screenGdop rejects an accepted solution with too weak geometry
func screenGdop(rslt *IntegrityResult, cfg *Config) (*IntegrityResult, error) {
	if cfg.MaxGdop > 0 && rslt.GDOP > cfg.MaxGdop {
		return rslt, fmt.Errorf("gdop error, gdop=%.1f > %.1f: %w", rslt.GDOP, cfg.MaxGdop, ErrDegenerateGeometry)
	}
	return rslt, nil
}

// minSubsetSize is the smallest subset examined by the exclusion search
func minSubsetSize(n int, cfg *Config) int {
	k := cfg.MinSats
	if cfg.MaxExclusions > 0 && n-cfg.MaxExclusions > k {
		k = n - cfg.MaxExclusions
	}
	return k
}

// evaluate solves one subset and tests it. It reads obs and x0 only.
func evaluate(geo *Geometry, obs []Observation, active []int, index int, x0 mat.Vector, cfg *Config) candidate {
	c := candidate{index: index, active: active, threshold: math.Inf(1)}
	sub := subset(obs, active)
	c.sol, c.err = SolveWLS(geo, sub, Weights(sub, cfg), x0, cfg)
	if c.err != nil {
		return c
	}
	c.threshold = ChiSqr(c.sol.Dof, cfg.Alpha)
	c.pass = c.sol.Dof > 0 && c.sol.SSE <= c.threshold
	return c
}

// ------------------------------------
// Exhaustive search
// ------------------------------------

// searchExhaustive examines subset sizes from n-1 down and returns the best passing
// subset of the largest size that has one
func searchExhaustive(geo *Geometry, obs []Observation, x0 mat.Vector, cfg *Config) *candidate {
	n := len(obs)
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	for k := n - 1; k >= minSubsetSize(n, cfg); k-- {

		// Lexicographic order gives every subset a stable index
		subsets := combin.Combinations(n, k)
		cands := make([]candidate, len(subsets))

		var g errgroup.Group
		g.SetLimit(workers)
		for i, idx := range subsets {
			g.Go(func() error {
				cands[i] = evaluate(geo, obs, idx, i, x0, cfg)
				return nil
			})
		}
		g.Wait()

		best := foldBest(cands, cfg.TieBreak)
		if log.IsLevelEnabled(logrus.DebugLevel) {
			np := 0
			for i := range cands {
				if cands[i].pass {
					np++
				}
			}
			log.WithFields(logrus.Fields{"k": k, "subsets": len(cands), "passed": np}).Debug("exhaustive search")
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// foldBest reduces the candidates to the best passing one. The result does not
// depend on the evaluation order.
func foldBest(cands []candidate, tb TieBreak) *candidate {
	var best *candidate
	for i := range cands {
		c := &cands[i]
		if !c.pass {
			continue
		}
		if best == nil || better(c, best, tb) {
			best = c
		}
	}
	return best
}

// better reports whether a ranks before b
func better(a, b *candidate, tb TieBreak) bool {
	k1a, k1b := a.sol.SSE, b.sol.SSE
	k2a, k2b := a.gdop(), b.gdop()
	if tb == MinGDOP {
		k1a, k1b, k2a, k2b = k2a, k2b, k1a, k1b
	}
	if k1a != k1b {
		return k1a < k1b
	}
	if k2a != k2b {
		return k2a < k2b
	}
	return a.index < b.index
}

// ------------------------------------
// Greedy search
// ------------------------------------

// Outcome of one greedy exclusion step
type searchStep int

const (
	stepContinue searchStep = iota // Excluded one, still failing
	stepAccept                     // Remaining set passed
	stepFail                       // Cannot exclude further
)

// searchGreedy drops the observation with the largest weighted residual one at a time
// until the remaining set passes
func searchGreedy(geo *Geometry, obs []Observation, global *candidate, cfg *Config) *candidate {
	minK := minSubsetSize(len(obs), cfg)
	cur := *global
	for {
		next, step := greedyStep(geo, obs, &cur, minK, cfg)
		switch step {
		case stepAccept:
			return &next
		case stepFail:
			return nil
		}
		cur = next
	}
}

// greedyStep excludes one observation from cur
func greedyStep(geo *Geometry, obs []Observation, cur *candidate, minK int, cfg *Config) (candidate, searchStep) {
	if len(cur.active)-1 < minK {
		log.Debugf("greedy search stopped: %d - 1 < %d", len(cur.active), minK)
		return candidate{}, stepFail
	}

	// Rank by |r_i| W_ii, largest first
	order := make([]int, len(cur.active))
	contrib := make([]float64, len(cur.active))
	for i := range order {
		order[i] = i
		contrib[i] = math.Abs(cur.sol.Res.AtVec(i)) * cur.sol.W.At(i, i)
	}
	sort.SliceStable(order, func(a, b int) bool { return contrib[order[a]] > contrib[order[b]] })

	// Exclude the worst one whose removal leaves a solvable set
	for _, pos := range order {
		active := slices.Delete(slices.Clone(cur.active), pos, pos+1)
		next := evaluate(geo, obs, active, cur.index+1, cur.sol.X, cfg)
		if next.err != nil {
			if !isNonViable(next.err) {
				log.Warnf("greedy exclusion failed: %v", next.err)
				return candidate{}, stepFail
			}
			log.WithField("sat", obs[cur.active[pos]].Sat).Debugf("greedy exclusion not viable: %v", next.err)
			continue
		}
		log.WithFields(logrus.Fields{"sat": obs[cur.active[pos]].Sat, "contrib": contrib[pos], "sse": next.sol.SSE, "threshold": next.threshold}).Debug("greedy exclusion")
		if next.pass {
			return next, stepAccept
		}
		return next, stepContinue
	}
	return candidate{}, stepFail
}

// ------------------------------------
// Result
// ------------------------------------

func newIntegrityResult(obs []Observation, c *candidate, status Status) *IntegrityResult {
	sol := c.sol
	rslt := &IntegrityResult{
		Status:      status,
		Active:      slices.Clone(c.active),
		Sats:        Sats(subset(obs, c.active)),
		Solution:    sol,
		State:       &State{X: mat.VecDenseCopyOf(sol.X), P: mat.NewSymDense(NX, nil)},
		Residuals:   sol.Res,
		SSE:         sol.SSE,
		Threshold:   c.threshold,
		Dof:         sol.Dof,
		GDOP:        sol.Dop.GDOP,
		Dop:         sol.Dop,
		ResidualCov: sol.ResidualCov(),
		Iterations:  sol.Iter,
	}
	rslt.State.P.CopySym(sol.Cov)
	for i := range obs {
		if !slices.Contains(c.active, i) {
			rslt.Excluded = append(rslt.Excluded, i)
			rslt.ExSats = append(rslt.ExSats, obs[i].Sat)
		}
	}
	return rslt
}
