// Package quiettime implements ERMA's quiet-time finder (C4): partitioning
// a signal into fixed-duration blocks, computing a mean-removed
// mean-square power per block, and identifying the quiet spans that are
// not part of an extended noisy (e.g. glider-motor) run. Grounded in
// original_source/quietTimes.c.
package quiettime

import (
	"math"

	"github.com/cimerspi/erma/internal/config"
	"github.com/cimerspi/erma/internal/ermaerr"
)

// Span is a quiet time span, in both sample indices and seconds-into-file
// (S-time).
type Span struct {
	Sam0, Sam1 int
	T0, T1     float64
}

// Find partitions snd into ns_tBlockS-duration blocks, computes each
// block's DC-removed average power, derives an adaptive noise threshold
// from hist, and returns the spans of the signal that are not part of a
// noise run at least ns_tConsecS long (after padding and a minimum-length
// filter). hist carries the adaptive threshold's memory across calls
// (i.e. across files in the same run, and across runs via its backing
// file).
func Find(snd []float64, sRate float64, p *config.Params, hist *History) ([]Span, error) {
	blockLen := int(math.Round(p.NsTBlockS * sRate))
	if blockLen < 1 {
		return nil, ermaerr.Fatal(ermaerr.CodeAvgPower, "ns_tBlockS*sRate rounds to a non-positive block length")
	}
	blockDurS := float64(blockLen) / sRate
	nBlocks := len(snd) / blockLen

	avgPower := make([]float64, nBlocks)
	for i, p0 := 0, 0; i < nBlocks; i, p0 = i+1, p0+blockLen {
		block := snd[p0 : p0+blockLen]
		sum := 0.0
		for _, v := range block {
			sum += v
		}
		avgSam := sum / float64(blockLen)

		sum = 0.0
		for _, v := range block {
			d := v - avgSam
			sum += d * d
		}
		avgPower[i] = sum / float64(blockLen)
	}

	thresh := hist.Threshold(avgPower, p)

	minConsec := int(math.Ceil(p.NsTConsecS / blockDurS))
	padBlock := int(math.Round(p.NsPadSec / blockDurS))

	var spans []Span
	inNoise := false
	quietStart := 0
	n := 0
	for i := 0; i < nBlocks; i++ {
		if avgPower[i] >= thresh {
			n++
			if n == minConsec && !inNoise {
				inNoise = true
				spans = appendIfLongEnough(spans, quietStart, i-n+1-padBlock, blockDurS, blockLen, nBlocks, sRate, p)
			}
		} else {
			if inNoise {
				quietStart = i + padBlock
			}
			n = 0
			inNoise = false
		}
	}
	if !inNoise {
		end := nBlocks + 1
		if n > 0 {
			end = nBlocks - (n + padBlock) + 1
		}
		spans = appendIfLongEnough(spans, quietStart, end, blockDurS, blockLen, nBlocks, sRate, p)
	}
	return spans, nil
}

func appendIfLongEnough(spans []Span, i0, i1 int, blockDurS float64, blockLen, nBlocks int, sRate float64, p *config.Params) []Span {
	dur := float64(i1-i0) * blockDurS
	if dur < p.NsMinQuietS {
		return spans
	}
	sam0 := max(i0, 0) * blockLen
	sam1 := min(i1, nBlocks) * blockLen
	return append(spans, Span{
		Sam0: sam0,
		Sam1: sam1,
		T0:   float64(sam0) / sRate,
		T1:   float64(sam1) / sRate,
	})
}
