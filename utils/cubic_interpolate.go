// SPDX-License-Identifier: EPL-2.0

// Package utils holds the sample level helpers shared by the resampler, the
// decoders and the stream glue.
package utils

// CubicInterpolate evaluates a Catmull-Rom spline through four consecutive
// samples. x is the fractional position between y1 and y2 (0 <= x <= 1).
func CubicInterpolate(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return ((a0*x+a1)*x+a2)*x + a3
}

// CubicInterpolateFrame interpolates every channel of four interleaved frames
// into dst. All slices must have the same length.
func CubicInterpolateFrame(dst, f0, f1, f2, f3 []float32, x float32) {
	for c := range dst {
		dst[c] = CubicInterpolate(f0[c], f1[c], f2[c], f3[c], x)
	}
}
