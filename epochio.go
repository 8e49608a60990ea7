// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

// Reads epoch files. The format is line oriented:
//
//	# comment
//	> week sec
//	sat x y z pr snr [elev [vx vy vz rate]]
//
// Positions [m], velocities [m/s], pseudorange [m], rate [m/s], snr [dB-Hz], elevation [deg].
// Elevation 0 means unknown.

package goraim

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadEpochs reads all epochs from r, in file order
func ReadEpochs(r io.Reader) ([]*Epoch, error) {

	eps := []*Epoch{}
	var ep *Epoch

	// Reader to read line by line with newline as delimiter
	s := bufio.NewScanner(r)
	ln := 0
	for s.Scan() {
		ln++
		line := strings.TrimSpace(s.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		// Epoch header
		if line[0] == '>' {
			t, err := getEpochTime(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", ln, err)
			}
			ep = &Epoch{Time: t}
			eps = append(eps, ep)
			continue
		}

		if ep == nil {
			return nil, fmt.Errorf("line %d: observation before the first epoch header", ln)
		}
		o, err := getObservation(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ln, err)
		}
		ep.Obs = append(ep.Obs, *o)
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return eps, nil
}

func getEpochTime(l string) (GTime, error) {
	la := strings.Fields(l[1:])
	if len(la) != 2 {
		return GTime{}, fmt.Errorf("invalid epoch header: %q", l)
	}
	week, err := strconv.Atoi(la[0])
	if err != nil {
		return GTime{}, fmt.Errorf("invalid week: %w", err)
	}
	sec, err := strconv.ParseFloat(la[1], 64)
	if err != nil {
		return GTime{}, fmt.Errorf("invalid seconds of week: %w", err)
	}
	return GTime{Week: week, Sec: sec}, nil
}

func getObservation(l string) (*Observation, error) {
	la := strings.Fields(l)
	if n := len(la); n != 6 && n != 7 && n != 11 {
		return nil, fmt.Errorf("invalid number of fields: %d", n)
	}
	v := make([]float64, len(la)-1)
	for i, s := range la[1:] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid field %d: %w", la[0], i+2, err)
		}
		v[i] = f
	}
	o := &Observation{
		Sat: SatType(la[0]),
		Pos: PosXYZ{X: v[0], Y: v[1], Z: v[2]},
		Pr:  v[3],
		Snr: v[4],
	}
	if len(v) >= 6 {
		o.Elev = ToRad(v[5])
	}
	if len(v) == 10 {
		o.Vel = PosXYZ{X: v[6], Y: v[7], Z: v[8]}
		o.Rate = v[9]
	}
	return o, nil
}
