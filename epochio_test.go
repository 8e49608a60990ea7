// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.18
//

package goraim

import (
	"strings"
	"testing"
)

func TestReadEpochs(t *testing.T) {
	txt := `# test data
> 2300 345600.0
G01 -1.0e7 2.0e7 1.0e7 2.2e7 45
G02 1.5e7 1.0e7 2.0e7 2.3e7 40.5 35.2
> 2300 345601.0
G01 -1.0e7 2.0e7 1.0e7 2.2e7 45 60 100 -200 300 -512.25
`
	eps, err := ReadEpochs(strings.NewReader(txt))
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 2 || len(eps[0].Obs) != 2 || len(eps[1].Obs) != 1 {
		t.Fatalf("epochs = %d", len(eps))
	}
	if eps[1].Time != (GTime{Week: 2300, Sec: 345601}) {
		t.Errorf("time = %+v", eps[1].Time)
	}
	o := eps[0].Obs[1]
	if o.Sat != "G02" || o.Pos.Z != 2.0e7 || o.Pr != 2.3e7 || o.Snr != 40.5 || o.Elev != ToRad(35.2) {
		t.Errorf("obs = %s", o.String())
	}
	if eps[0].Obs[0].Elev != 0 {
		t.Errorf("elevation = %g, want unknown", eps[0].Obs[0].Elev)
	}
	o = eps[1].Obs[0]
	if o.Vel != (PosXYZ{X: 100, Y: -200, Z: 300}) || o.Rate != -512.25 {
		t.Errorf("velocity = %s, rate = %g", o.Vel, o.Rate)
	}
	if o.Sat.Sys() != 'G' || o.Sat.Num() != 1 {
		t.Errorf("sat = %c %d", o.Sat.Sys(), o.Sat.Num())
	}
}

func TestReadEpochsErrors(t *testing.T) {
	for _, txt := range []string{
		"G01 1 2 3 4 5\n",
		"> 2300\n",
		"> 2300 1\nG01 1 2 3 4\n",
		"> 2300 1\nG01 1 2 x 4 5\n",
	} {
		if _, err := ReadEpochs(strings.NewReader(txt)); err == nil {
			t.Errorf("%q accepted", txt)
		}
	}
}
