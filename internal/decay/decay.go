// Package decay implements ERMA's exponential decay normaliser (C5): an
// exponentially-weighted running mean with an outlier-ignore escape hatch,
// used to long-term-normalise the numerator/denominator power signals
// ahead of the ratio calculation in C6. Grounded in
// original_source/expDecay.c.
package decay

import "math"

// Normalizer holds one quiet-time segment's running-mean state. Unlike
// dsp.Filter's IIR warmup vector, this state is deliberately *not* carried
// across segments or files: original_source/ermaNew.c:156 calls expDecay
// with pPrev==NULL on every segment, so each segment re-warms its own
// running mean from its own first decayTime seconds and starts
// ignoreCount back at 0. Quiet-time spans are discontiguous in time, so a
// carried mean would leak one segment's levels into the next and change
// which peaks clear powerThreshPerKHz. Build a fresh Normalizer per
// segment via New.
type Normalizer struct {
	sRate        float64
	alpha        float64 // decay per sample
	ignoreThresh float64
	ignoreLimSam int

	runMean     float64
	ignoreCount int
	started     bool
}

// New builds a Normalizer for a signal sampled at sRate, decaying to ~1/e
// of a unit impulse's value in decayTime seconds. ignoreThresh is the
// multiple of the current running mean above which a sample is treated as
// an outlier (a click or a motor transient) and excluded from the running
// mean, unless such outliers persist for more than ignoreLimT seconds, at
// which point the running mean is reset to track them instead.
func New(sRate, decayTime, ignoreThresh, ignoreLimT float64) *Normalizer {
	return &Normalizer{
		sRate:        sRate,
		alpha:        1 - math.Exp(-1/(decayTime*sRate)),
		ignoreThresh: ignoreThresh,
		ignoreLimSam: int(math.Round(ignoreLimT * sRate)),
	}
}

// Apply runs the decay normaliser over x, returning a same-length result.
// If doDiv is false, each output sample is the running mean itself at that
// point; if true, each output sample is x[i] divided by the running mean
// (the long-term-normalised signal C6 actually uses). The running mean is
// first initialised to the plain mean of the first warmTime seconds of x
// (or all of x, if it is shorter); call Apply at most once per Normalizer
// so this warm start always comes from the segment's own samples.
func (n *Normalizer) Apply(x []float64, warmTime float64, doDiv bool) []float64 {
	if !n.started {
		nWarm := int(math.Round(warmTime * n.sRate))
		if nWarm < 1 {
			nWarm = 1
		}
		if nWarm > len(x) {
			nWarm = len(x)
		}
		n.runMean = mean(x[:nWarm])
		n.started = true
	}

	out := make([]float64, len(x))
	for i, v := range x {
		if v <= n.runMean*n.ignoreThresh {
			n.runMean = (1-n.alpha)*n.runMean + n.alpha*v
			n.ignoreCount = 0
		} else if n.ignoreCount < n.ignoreLimSam {
			n.ignoreCount++
		} else {
			n.ignoreCount = 0
			n.runMean = v
		}
		if doDiv {
			out[i] = v / n.runMean
		} else {
			out[i] = n.runMean
		}
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}
