// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.14
//

package goraim

import (
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ------------------------------------
// Mini functions
// ------------------------------------

func SQ(x float64) float64 {
	return x * x
}

func EucDist(a, b *PosXYZ) float64 {
	return math.Sqrt(SQ(a.X-b.X) + SQ(a.Y-b.Y) + SQ(a.Z-b.Z))
}

func ToDeg(rad float64) float64 {
	return rad / PI * 180.0
}

func ToRad(deg float64) float64 {
	return deg / 180.0 * PI
}

// ------------------------------------
// Logging
// ------------------------------------

// Package logger. Debug level traces iterations and subsets, Trace level also dumps matrices.
var log = logrus.New()

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// Logger returns the package logger
func Logger() *logrus.Logger {
	return log
}

// SetDebugLevel maps the debug level (0: OFF ... 4: most detailed) to a logrus level
func SetDebugLevel(v int) {
	switch {
	case v <= 0:
		log.SetLevel(logrus.InfoLevel)
	case v <= 2:
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.TraceLevel)
	}
}

// traceMat dumps a matrix at trace level
func traceMat(name string, X mat.Matrix) {
	if !log.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	r, c := X.Dims()
	fa := mat.Formatted(X, mat.Prefix("\t"), mat.Squeeze())
	log.Tracef("%s (%d x %d)=\n\t%v", name, r, c, fa)
}
