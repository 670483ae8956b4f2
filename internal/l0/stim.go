// STIM: a noise-preservation bias on partition cost. A per-partition
// variance of source and reference is maintained, and their geometric-mean
// ratio becomes a Q-formatted multiplier on distortion, so flat regions
// with real film grain are not over-eagerly smoothed into skips.
package l0

import (
	"gonum.org/v1/gonum/stat"
)

// StimQShift is the fixed-point shift applied to the STIM factor so it can
// be folded into an integer distortion multiply without floating point on
// the per-block hot path.
const StimQShift = 8

// variance returns the population variance of samples, promoted to
// float64 for the geometric-mean step below.
func variance(samples []byte) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := 0.0
	for _, s := range samples {
		mean += float64(s)
	}
	mean /= float64(len(samples))
	sumSq := 0.0
	for _, s := range samples {
		d := float64(s) - mean
		sumSq += d * d
	}
	return sumSq / float64(len(samples))
}

// StimFactor computes the Q8 noise-preservation multiplier for one
// partition: the geometric mean of (source variance, reference variance)
// ratios, clamped away from zero so a perfectly flat reference never
// divides by zero.
func StimFactor(src, ref []byte) uint32 {
	srcVar := variance(src)
	refVar := variance(ref)
	if refVar < 1 {
		refVar = 1
	}
	if srcVar < 1 {
		srcVar = 1
	}
	ratio := srcVar / refVar
	// The geometric mean of {ratio, 1} damps extreme ratios back toward
	// unity, so a single noisy partition cannot swing the cost model as
	// hard as the raw ratio would.
	gm := stat.GeometricMean([]float64{ratio, 1.0}, nil)
	scaled := gm * float64(int(1)<<StimQShift)
	if scaled < 1 {
		scaled = 1
	}
	return uint32(scaled)
}

// ApplyStim scales a distortion value by a Q8 STIM factor with rounded
// shift, for use in place of the raw distortion term in partition cost
// when the noise-aware variant is enabled.
func ApplyStim(distortion, stimFactorQ8 uint32) uint32 {
	return uint32((uint64(distortion)*uint64(stimFactorQ8) + (1 << (StimQShift - 1))) >> StimQShift)
}
