// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.19
//

package goraim

import (
	"fmt"
	"math"
)

//-------------------------------------------------------------------
// PosXYZ (ECEF, also used for ECEF velocities)
//-------------------------------------------------------------------

type PosXYZ struct {
	X float64
	Y float64
	Z float64
}

func (p PosXYZ) Sub(b PosXYZ) PosXYZ {
	return PosXYZ{X: p.X - b.X, Y: p.Y - b.Y, Z: p.Z - b.Z}
}

func (p PosXYZ) Dot(b PosXYZ) float64 {
	return p.X*b.X + p.Y*b.Y + p.Z*b.Z
}

func (p PosXYZ) Norm() float64 {
	return math.Sqrt(p.Dot(p))
}

// Scaled returns p * s
func (p PosXYZ) Scaled(s float64) PosXYZ {
	return PosXYZ{X: p.X * s, Y: p.Y * s, Z: p.Z * s}
}

func (p PosXYZ) IsZero() bool {
	return p.X == 0 && p.Y == 0 && p.Z == 0
}

func (p *PosXYZ) ToLLH() PosLLH {
	// In case of origin
	if p.IsZero() {
		return PosLLH{Lat: 0, Lon: 0, Hei: -Re}
	}

	a := Re                       // Semi-major axis
	b := a * (1 - Fe)             // Semi-minor axis
	e := math.Sqrt(Fe * (2 - Fe)) // Eccentricity

	// Bowring's method
	h := a*a - b*b
	q := math.Sqrt(p.X*p.X + p.Y*p.Y)
	t := math.Atan2(p.Z*a, q*b)
	sint := math.Sin(t)
	cost := math.Cos(t)

	lat := math.Atan2(p.Z+h/b*sint*sint*sint, q-h/a*cost*cost*cost)
	n := a / math.Sqrt(1-e*e*math.Sin(lat)*math.Sin(lat)) // Radius of curvature in the prime vertical
	return PosLLH{
		Lat: lat,
		Lon: math.Atan2(p.Y, p.X),
		Hei: q/math.Cos(lat) - n,
	}
}

// ENUBasis returns the unit vectors east, north and up at base, in ECEF
func ENUBasis(base PosXYZ) (e, n, u PosXYZ) {
	llh := base.ToLLH()
	s1, c1 := math.Sincos(llh.Lon)
	s2, c2 := math.Sincos(llh.Lat)
	e = PosXYZ{X: -s1, Y: c1, Z: 0}
	n = PosXYZ{X: -c1 * s2, Y: -s1 * s2, Z: c2}
	u = PosXYZ{X: c1 * c2, Y: s1 * c2, Z: s2}
	return
}

func (p *PosXYZ) ToENU(base PosXYZ) PosENU {
	d := p.Sub(base)
	e, n, u := ENUBasis(base)
	return PosENU{E: d.Dot(e), N: d.Dot(n), U: d.Dot(u)}
}

// Elevation of sat seen from usr [rad]
func (usr *PosXYZ) Elevation(sat PosXYZ) float64 {
	enu := sat.ToENU(*usr)
	return enu.Elevation()
}

func (p PosXYZ) String() string {
	return fmt.Sprintf("%.4f %.4f %.4f", p.X, p.Y, p.Z)
}

//-------------------------------------------------------------------
// PosLLH
//-------------------------------------------------------------------

type PosLLH struct {
	Lat float64 // [rad]
	Lon float64 // [rad]
	Hei float64 // Ellipsoidal height [m]
}

func (llh *PosLLH) ToXYZ() PosXYZ {
	e := math.Sqrt(Fe * (2 - Fe))
	n := Re / math.Sqrt(1-e*e*math.Sin(llh.Lat)*math.Sin(llh.Lat))
	return PosXYZ{
		X: (n + llh.Hei) * math.Cos(llh.Lat) * math.Cos(llh.Lon),
		Y: (n + llh.Hei) * math.Cos(llh.Lat) * math.Sin(llh.Lon),
		Z: (n*(1-e*e) + llh.Hei) * math.Sin(llh.Lat),
	}
}

func (llh PosLLH) String() string {
	return fmt.Sprintf("%.9f %.9f %.4f", ToDeg(llh.Lat), ToDeg(llh.Lon), llh.Hei)
}

//-------------------------------------------------------------------
// PosENU
//-------------------------------------------------------------------

type PosENU struct {
	E float64
	N float64
	U float64
}

func (enu *PosENU) Elevation() float64 {
	return math.Atan2(enu.U, math.Sqrt(enu.E*enu.E+enu.N*enu.N))
}

func (enu *PosENU) Azimuth() float64 {
	return math.Atan2(enu.E, enu.N)
}
