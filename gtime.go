// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goraim

import (
	"math"
	"time"
)

// GPS week and seconds of week
type GTime struct {
	Week int
	Sec  float64
}

// Start of GPS time
var gpsEpoch = time.Date(1980, 1, 6, 0, 0, 0, 0, time.UTC)

const secPerWeek = 3600 * 24 * 7

func (p *GTime) ToTime() time.Time {
	i := int64(math.Trunc(p.Sec))
	t := int64(secPerWeek*p.Week) + i + gpsEpoch.Unix()
	n := int64((p.Sec - float64(i)) * 1e9)
	return time.Unix(t, n)
}

// Diff returns p - b [s]
func (p *GTime) Diff(b GTime) float64 {
	return float64(p.Week-b.Week)*secPerWeek + (p.Sec - b.Sec)
}

func (p *GTime) IsZero() bool {
	return p.Week == 0 && p.Sec == 0
}

func (p *GTime) String() string {
	return p.ToTime().UTC().Format("2006/01/02 15:04:05.000")
}
