// SPDX-License-Identifier: EPL-2.0

// Package utils holds the small numeric kernels shared by the converter and the
// mixer: interpolation and saturating PCM conversions.
package utils

// Float is the set of floating point types the interpolators accept.
type Float interface {
	~float32 | ~float64
}

// CubicInterpolate performs Catmull-Rom interpolation.
// x is the fractional position between y1 and y2 (0 <= x <= 1)
// y0, y1, y2, y3 are four consecutive samples
func CubicInterpolate[F Float](y0, y1, y2, y3, x F) F {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return ((a0*x+a1)*x+a2)*x + a3
}

// Lerp returns the point t of the way from a to b.
func Lerp[F Float](a, b, t F) F {
	return a*(1-t) + b*t
}
