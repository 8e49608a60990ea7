// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	m "github.com/mkhts/goraim"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Structure to hold command line argument information
type cmdOpt struct {
	epochFn     string
	cfgFn       string
	posFn       string
	noPosHeader bool
	dbg         int
	flagCfg     *m.Config // Options given on the command line
}

var args = cmdOpt{flagCfg: m.NewConfig()}

var rootCmd = &cobra.Command{
	Use:   "goraim [flags] epochs.txt",
	Short: "Position and velocity estimation with RAIM/FDE",
	Long: `goraim reads satellite observations per epoch and outputs the weighted least squares
solution protected by receiver autonomous integrity monitoring (fault detection and exclusion).

Epoch file format:
	> week sec
	sat x y z pr snr [elev [vx vy vz rate]]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, a []string) error {
		args.epochFn = a[0]
		m.SetDebugLevel(args.dbg)
		cfg, err := loadConfig(args.cfgFn, cmd.Flags())
		if err != nil {
			return err
		}
		return runApplication(args, cfg)
	},
	SilenceUsage: true,
}

func init() {
	fc := args.flagCfg
	f := rootCmd.Flags()
	f.StringVarP(&args.cfgFn, "config", "c", "", "YAML option file. Command line options take precedence.")
	f.StringVarP(&args.posFn, "output", "o", "", "Output pos file path. If not specified, output to stdout.")
	f.BoolVar(&args.noPosHeader, "nh", false, "Do not output header section of pos file.")
	f.IntVarP(&args.dbg, "debug", "x", 0, "Debug information display. 0(OFF), 1-2(iterations and subsets), 3-4(matrices)")
	f.Var(&fc.Kind, "kind", "Measurement model. pseudorange(position), rangerate(position and velocity)")
	f.Var(&fc.Weight, "weight", "Weighting method. elevation, elevation-snr, error-budget")
	f.Var(&fc.Strategy, "strategy", "Fault exclusion search. exhaustive, greedy")
	f.Var(&fc.TieBreak, "tie-break", "Selection among passing subsets. min-sse, min-gdop")
	f.Float64Var(&fc.Alpha, "alpha", fc.Alpha, "Significance level of the chi-square test")
	f.Float64VarP(&fc.MinElevation, "elmask", "m", fc.MinElevation, "Elevation floor for weighting [deg]")
	f.IntVar(&fc.MaxExclusions, "max-ex", fc.MaxExclusions, "Maximum number of excluded satellites. 0 for no limit")
	f.IntVar(&fc.MaxExhaustiveObs, "max-exh", fc.MaxExhaustiveObs, "Above this number of satellites the greedy search is used")
	f.IntVar(&fc.Workers, "workers", fc.Workers, "Parallel subset evaluations. 0 for GOMAXPROCS")
	f.Float64VarP(&fc.MaxGdop, "maxdop", "d", fc.MaxGdop, "Reject solutions when GDOP exceeds this value. 0 for no check")
	f.BoolVar(&fc.Refine, "refine", fc.Refine, "Refine solutions with the Kalman filter over epochs")
}

// Options from the file, overridden by the flags explicitly set
func loadConfig(fn string, fs *pflag.FlagSet) (*m.Config, error) {
	cfg := m.NewConfig()
	if len(fn) > 0 {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if cfg, err = m.LoadConfig(f); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	fc := args.flagCfg
	overrides := map[string]func(){
		"kind":      func() { cfg.Kind = fc.Kind },
		"weight":    func() { cfg.Weight = fc.Weight },
		"strategy":  func() { cfg.Strategy = fc.Strategy },
		"tie-break": func() { cfg.TieBreak = fc.TieBreak },
		"alpha":     func() { cfg.Alpha = fc.Alpha },
		"elmask":    func() { cfg.MinElevation = fc.MinElevation },
		"max-ex":    func() { cfg.MaxExclusions = fc.MaxExclusions },
		"max-exh":   func() { cfg.MaxExhaustiveObs = fc.MaxExhaustiveObs },
		"workers":   func() { cfg.Workers = fc.Workers },
		"maxdop":    func() { cfg.MaxGdop = fc.MaxGdop },
		"refine":    func() { cfg.Refine = fc.Refine },
	}
	fs.Visit(func(f *pflag.Flag) {
		if fn, ok := overrides[f.Name]; ok {
			fn()
		}
	})
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt, cfg *m.Config) error {

	eps, err := readEpochs(args.epochFn)
	if err != nil {
		return fmt.Errorf("failed to read epoch file: %w", err)
	}
	if len(eps) == 0 {
		return fmt.Errorf("no epoch in %s", args.epochFn)
	}

	// Prepare output file
	pos, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer pos.Close()

	if !args.noPosHeader {
		printPosHeader(pos, os.Args[0], args.epochFn, cfg, eps)
	}
	return processEpochs(cfg, eps, pos)
}

func readEpochs(fn string) ([]*m.Epoch, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return m.ReadEpochs(f)
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {
	if len(args.posFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}
	return os.Create(args.posFn)
}

// Process epochs
func processEpochs(cfg *m.Config, eps []*m.Epoch, pos io.Writer) error {
	tr, err := m.NewTracker(cfg)
	if err != nil {
		return err
	}
	log := m.Logger()
	for _, ep := range eps {
		log.Debugf(">>> %s", ep.Time.String())
		res, err := tr.Process(ep)
		if err != nil {
			log.WithFields(logrus.Fields{"time": ep.Time.String(), "ns": len(ep.Obs)}).Warnf("Error processing epoch: %v", err)
			continue
		}
		printPos(pos, res)
	}
	return nil
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Print pos file header
func printPosHeader(pos io.Writer, cmd, epochFn string, cfg *m.Config, eps []*m.Epoch) {
	ts, te := eps[0].Time, eps[len(eps)-1].Time
	fmt.Fprintf(pos, "%% program   : %s\n", filepath.Base(cmd))
	fmt.Fprintf(pos, "%% inp file  : %s\n", epochFn)
	fmt.Fprintf(pos, "%% obs start : %s (week%d %7.1fs)(GPST)\n", ts.String(), ts.Week, ts.Sec)
	fmt.Fprintf(pos, "%% obs end   : %s (week%d %7.1fs)(GPST)\n", te.String(), te.Week, te.Sec)
	fmt.Fprintf(pos, "%% raim      : %s, %s, alpha=%g\n", cfg.Strategy.String(), cfg.TieBreak.String(), cfg.Alpha)
	fmt.Fprintf(pos, "%%  GPST                   latitude(deg) longitude(deg)  height(m)   Q  ns      clk_bias(s)       gdop       pdop       hdop       vdop      status")
	if cfg.Kind == m.RangeRate {
		fmt.Fprintf(pos, "      ve(m/s)      vn(m/s)      vu(m/s)")
	}
	fmt.Fprintf(pos, "  excluded\n")
}

// Output POS file
func printPos(pos io.Writer, res *m.TrackResult) {
	p := res.Pos
	st := p.Refined
	if st == nil {
		st = p.State
	}
	xyz := st.Pos()
	llh := xyz.ToLLH()

	// Round time to milliseconds
	rcvt := m.GTime{Week: res.Time.Week, Sec: math.Round(res.Time.Sec*1000) / 1000}

	Q := 5
	fmt.Fprintf(pos, "%s %13.9f %14.9f %10.4f %3d %3d %16.9f %10.3f %10.3f %10.3f %10.3f %11s",
		rcvt.String(), m.ToDeg(llh.Lat), m.ToDeg(llh.Lon), llh.Hei, Q, len(p.Active), st.ClockBias(),
		p.Dop.GDOP, p.Dop.PDOP, p.Dop.HDOP, p.Dop.VDOP, p.StatusString())
	if v := res.Vel; v != nil {
		vs := v.State
		if v.Refined != nil {
			vs = v.Refined
		}
		vel := vs.Pos()
		e, n, u := m.ENUBasis(xyz)
		fmt.Fprintf(pos, " %12.4f %12.4f %12.4f", vel.Dot(e), vel.Dot(n), vel.Dot(u))
	}
	fmt.Fprintf(pos, "  %v\n", p.ExSats)
}
