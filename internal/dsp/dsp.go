// Package dsp implements ERMA's direct-form-II IIR filter (C2) and the
// anti-alias downsampler and band filters built on top of it (C3).
// Grounded in original_source/iirFilter.c and original_source/ermaFilt.c.
package dsp

import (
	"fmt"

	"github.com/cimerspi/erma/internal/ermaerr"
)

// Filter is a direct-form-II IIR filter with explicit warm-state carry,
// letting a long signal be processed in independent chunks while producing
// bit-for-bit the same output as processing it in one call. Corresponds to
// IIRFILTER in the original source.
type Filter struct {
	Passband [2]float64
	n        int
	b, a     []float64 // as configured
	b1, a1   []float64 // b, a divided by a[0]

	// warmup holds, in order, the last n outputs (Y) followed by the last n
	// inputs (X) from the previous call to Process. It starts zeroed.
	warmup []float64
}

// NewFilter builds a Filter from coefficient vectors b and a, which must be
// the same non-zero length. The coefficients are normalised by a[0] once
// here (not re-derived on every Process call), matching initIirFilter's
// division of B and A by A[0].
func NewFilter(passband [2]float64, b, a []float64) (*Filter, error) {
	n := len(b)
	if n == 0 || len(a) != n {
		return nil, ermaerr.Fatal(ermaerr.CodeFilterCoeffs,
			"filter coefficients must be non-empty and equal length (got %d, %d)", len(b), len(a))
	}
	if a[0] == 0 {
		return nil, ermaerr.Fatal(ermaerr.CodeFilterCoeffs, "filter a[0] must be non-zero")
	}

	f := &Filter{
		Passband: passband,
		n:        n,
		b:        append([]float64(nil), b...),
		a:        append([]float64(nil), a...),
		b1:       make([]float64, n),
		a1:       make([]float64, n),
		warmup:   make([]float64, 2*n),
	}
	for i := 0; i < n; i++ {
		f.b1[i] = b[i] / a[0]
		f.a1[i] = a[i] / a[0]
	}
	return f, nil
}

// N returns the filter order (the length of its coefficient vectors).
func (f *Filter) N() int { return f.n }

// Bandwidth returns the width, in Hz, of the filter's configured passband.
func (f *Filter) Bandwidth() float64 { return f.Passband[1] - f.Passband[0] }

// Process filters x into a same-length output, carrying and updating the
// filter's warm state so a subsequent call continues the same signal.
// Processing one long signal in a single call produces exactly the same
// values as processing it split across several calls (with no gaps
// between chunks) — the property the warm state exists to guarantee.
func (f *Filter) Process(x []float64) []float64 {
	n := f.n
	nX := len(x)
	y := make([]float64, nX)
	if nX == 0 {
		return y
	}

	warmLen := n - 1
	if warmLen > nX {
		warmLen = nX
	}

	// Warm-up part: early samples that need history from warmup.
	for i := 0; i < warmLen; i++ {
		sum := f.b1[0] * x[i]
		for k := 1; k < n; k++ {
			if i-k >= 0 {
				sum += f.b1[k]*x[i-k] - f.a1[k]*y[i-k]
			} else {
				sum += f.b1[k]*f.warmup[2*n+i-k] - f.a1[k]*f.warmup[n+i-k]
			}
		}
		y[i] = sum
	}

	// Steady-state part: every sample has n-1 real predecessors available.
	for i := n - 1; i < nX; i++ {
		sum := f.b1[0] * x[i]
		j := i - 1
		for k := 1; k < n; k, j = k+1, j-1 {
			sum += f.b1[k]*x[j] - f.a1[k]*y[j]
		}
		y[i] = sum
	}

	if nX >= n {
		for i := 0; i < n; i++ {
			f.warmup[i] = y[nX-n+i]
			f.warmup[n+i] = x[nX-n+i]
		}
	} else {
		// Chunk shorter than the filter order: shift in what we have and
		// keep the rest of the prior warm state. This only matters for
		// pathologically small chunks; ERMA's real inputs are quiet-time
		// segment buffers many orders of magnitude longer than n (7-9 taps).
		shift := nX
		copy(f.warmup, f.warmup[shift:n])
		copy(f.warmup[n-shift:n], y)
		copy(f.warmup[n:2*n-shift], f.warmup[n+shift:2*n])
		copy(f.warmup[2*n-shift:2*n], x)
	}

	return y
}

// String renders a short filter description for log lines.
func (f *Filter) String() string {
	return fmt.Sprintf("filter(n=%d, passband=[%g,%g]Hz)", f.n, f.Passband[0], f.Passband[1])
}
