// Package detector implements the ERMA ratio-click detector (C6): decimate
// a quiet-time segment, band-filter it into a numerator and denominator
// power signal, take their running-average ratio, long-term-normalise the
// numerator power, and pick peaks that clear both a power and a ratio
// threshold. Grounded in original_source/ermaNew.c.
package detector

import (
	"math"

	"github.com/cimerspi/erma/internal/config"
	"github.com/cimerspi/erma/internal/decay"
	"github.com/cimerspi/erma/internal/dsp"
	"github.com/cimerspi/erma/internal/ermaerr"
)

// Click is a single detection, timed in seconds from the start of the file
// that produced it.
type Click struct {
	TimeS float64
}

// Detector holds the state that must carry across segments and files
// within a run: the downsample filter and band filters (which carry their
// own warm IIR state) and the one-shot 50/60 kHz band choice. The decay
// normaliser is deliberately *not* held here — see decay.Normalizer's
// doc comment — and is instead built fresh inside each Detect call. A
// Detector processes every quiet-time segment of a single run in
// sequence.
type Detector struct {
	p *config.Params

	dsFilt *dsp.Filter
	sel    *dsp.BandSelector

	overrideNumer, overrideDenom *dsp.Filter
}

// New builds a Detector from p, constructing the downsample filter (and any
// band-filter overrides) up front so a bad config is reported before any
// audio is processed.
func New(p *config.Params) (*Detector, error) {
	dsFilt, err := buildOverrideOrDefault([2]float64{0, 0}, p.DsfB, p.DsfA, dsp.NewDownsampleFilter)
	if err != nil {
		return nil, err
	}

	d := &Detector{p: p, dsFilt: dsFilt, sel: &dsp.BandSelector{}}

	if len(p.NumerB) > 0 && len(p.NumerA) > 0 {
		d.overrideNumer, err = buildFilter([2]float64{4e3, 8e3}, p.NumerB, p.NumerA)
		if err != nil {
			return nil, err
		}
	}
	if len(p.DenomB) > 0 && len(p.DenomA) > 0 {
		d.overrideDenom, err = buildFilter([2]float64{22e3, 23.5e3}, p.DenomB, p.DenomA)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func buildOverrideOrDefault(passband [2]float64, bf, af []float32, def func() (*dsp.Filter, error)) (*dsp.Filter, error) {
	if len(bf) == 0 || len(af) == 0 {
		return def()
	}
	return buildFilter(passband, bf, af)
}

func buildFilter(passband [2]float64, bf, af []float32) (*dsp.Filter, error) {
	b := make([]float64, len(bf))
	for i, v := range bf {
		b[i] = float64(v)
	}
	a := make([]float64, len(af))
	for i, v := range af {
		a[i] = float64(v)
	}
	return dsp.NewFilter(passband, b, a)
}

// Detect runs the ERMA detector on one quiet-time segment seg (sRate Hz,
// starting at segT0 seconds into the file), appending its click times
// (already offset by segT0) to the result. It mirrors ermaNew: decimate,
// band-filter, convert to power per kHz of bandwidth, average-ratio,
// long-term-normalise, then peak-pick.
func (d *Detector) Detect(seg []float64, segT0, sRate float64) ([]Click, error) {
	x, outRate := dsp.Downsample(d.dsFilt, seg, d.p.Decim, sRate)

	if err := d.sel.Select(outRate, d.overrideNumer, d.overrideDenom); err != nil {
		return nil, err
	}
	numer, denom := d.sel.Filter(x)

	bwNumerKHz := d.sel.Numer().Bandwidth() / 1000.0
	bwDenomKHz := d.sel.Denom().Bandwidth() / 1000.0
	if bwNumerKHz <= 0 || bwDenomKHz <= 0 {
		return nil, ermaerr.Fatal(ermaerr.CodeNumerDenom, "band filter has zero or negative bandwidth (%g, %g kHz)", bwNumerKHz, bwDenomKHz)
	}
	toPowerPerKHz(numer, bwNumerKHz)
	toPowerPerKHz(denom, bwDenomKHz)

	avgSam := int(math.Round(d.p.AvgT * outRate))
	if avgSam < 1 {
		return nil, ermaerr.Fatal(ermaerr.CodeNumerDenomAvg, "avgT*sRate rounds to a non-positive sample count")
	}
	ratio := calcAverageRatio(numer, denom, avgSam)
	delaySam := avgSam / 2

	// A fresh Normalizer every call: original_source/ermaNew.c:156 passes
	// pPrev==NULL to expDecay on every segment, so the running mean and
	// ignoreCount re-warm from this segment's own samples rather than
	// carrying over from the previous quiet-time span.
	norm := decay.New(outRate, d.p.DecayTime, d.p.IgnoreThresh/bwNumerKHz, d.p.IgnoreLimT)
	normPowNumer := norm.Apply(numer, d.p.DecayTime, true)

	clicks := findClicks(normPowNumer, segT0, ratio, outRate, d.p, delaySam, bwNumerKHz)
	return clicks, nil
}

// toPowerPerKHz squares each sample in place and divides by bwKHz,
// converting a filtered amplitude signal into power per kHz of filter
// bandwidth.
func toPowerPerKHz(x []float64, bwKHz float64) {
	inv := 1.0 / bwKHz
	for i, v := range x {
		x[i] = v * v * inv
	}
}

// calcAverageRatio computes the running-average ratio of num to den over a
// sliding window of avgSam samples, returning a slice shorter than num by
// avgSam-1. Summing incrementally (add the newest sample, subtract the
// oldest) would accumulate floating-point error over a long file, so the
// running sums are restarted from scratch every nPerLoop samples.
func calcAverageRatio(num, den []float64, avgSam int) []float64 {
	nNum := len(num)
	nPerLoop := 1000
	if avgSam*2 > nPerLoop {
		nPerLoop = avgSam * 2
	}

	nRatio := nNum - (avgSam - 1)
	if nRatio < 0 {
		nRatio = 0
	}
	ratio := make([]float64, nRatio)

	for iBig := 0; iBig < nNum; iBig += nPerLoop {
		var numSum, denSum float64
		i := iBig
		iEnd := iBig + avgSam - 1
		if iEnd > nNum {
			iEnd = nNum
		}
		for ; i < iEnd; i++ {
			numSum += num[i]
			denSum += den[i]
		}

		iEnd = i + nPerLoop
		if iEnd > nNum {
			iEnd = nNum
		}
		for j := iBig; i < iEnd; i, j = i+1, j+1 {
			numSum += num[i]
			denSum += den[i]
			if j < len(ratio) {
				ratio[j] = numSum / denSum
			}
			numSum -= num[j]
			denSum -= den[j]
		}
	}
	return ratio
}

// peakNear returns the index, within nbd samples either side of ix, of the
// highest value in x (clamped to x's bounds at either end).
func peakNear(x []float64, ix, nbd int) int {
	i0 := ix - nbd
	if i0 < 0 {
		i0 = 0
	}
	i1 := ix + nbd + 1
	if i1 > len(x) {
		i1 = len(x)
	}
	maxIx := i0
	for i := i0 + 1; i < i1; i++ {
		if x[i] > x[maxIx] {
			maxIx = i
		}
	}
	return maxIx
}

// findClicks scans x (the long-term-normalised numerator power) for peaks
// that clear powerThreshPerKHz, are separated from the previous peak by at
// least refractorySam samples of sub-threshold values, and whose
// corresponding point in ratio clears ratioThresh. A confirmed click's
// time is taken from its peak in ratio (shifted forward by delaySam to align
// with x's time base), plus segT0.
func findClicks(x []float64, segT0 float64, ratio []float64, sRate float64, p *config.Params, delaySam int, bwNumerKHz float64) []Click {
	nbdSam := int(math.Round(p.PeakNbdT * sRate))
	refractorySam := int(math.Round(p.RefractoryT * sRate))
	powerThreshPerKHz := p.PowerThresh / bwNumerKHz

	var clicks []Click
	nLow := 0
	i := 0
	for i < len(ratio) {
		if x[i] <= powerThreshPerKHz {
			nLow++
		} else {
			if nLow >= refractorySam {
				ixR := peakNear(ratio, i-delaySam, nbdSam)
				if ratio[ixR] > p.RatioThresh {
					clicks = append(clicks, Click{TimeS: float64(ixR+delaySam)/sRate + segT0})
					if ixR-delaySam > i {
						i = ixR - delaySam
					}
				}
			}
			nLow = 0
		}
		i++
	}
	return clicks
}
