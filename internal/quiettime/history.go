package quiettime

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cimerspi/erma/internal/config"
)

// defaultThresh is used only if a block-power vector is empty; it should
// never actually drive a decision, matching quietTimesDefaultThresh in the
// original source.
const defaultThresh = 5e8

// History tracks the adaptive noise threshold across files in a run (and,
// via an on-disk ring file, across process invocations): a record of the
// ep.ns_nRecent most recent ns_pctile-percentile block-power values.
// Grounded in getThresh in original_source/quietTimes.c. The on-disk
// format is a flat little-endian float32 array — the same layout
// writeFloatArray/readFloatArray imply from their signatures in
// ermaGoodies.h, declared but never defined in the retrieved source.
type History struct {
	path   string
	recent []float64
	loaded bool
}

// NewHistory returns a History that persists to baseDir/p.PctFileName.
func NewHistory(baseDir string, p *config.Params) *History {
	return &History{path: filepath.Join(baseDir, p.PctFileName)}
}

// Threshold computes the adaptive noise threshold for this file's block
// powers, folding the new percentile observation into the recent-history
// ring and persisting the ring to disk before returning.
func (h *History) Threshold(avgPower []float64, p *config.Params) float64 {
	if len(avgPower) == 0 {
		return defaultThresh
	}
	if !h.loaded {
		h.recent = loadRecent(h.path, p.NsNRecent)
		h.loaded = true
	}

	powCopy := append([]float64(nil), avgPower...)
	pct := Percentile(powCopy, p.NsPctile)

	if len(h.recent) >= p.NsNRecent && p.NsNRecent > 0 {
		h.recent = h.recent[len(h.recent)-p.NsNRecent+1:]
	}
	h.recent = append(h.recent, pct)

	medianCopy := append([]float64(nil), h.recent...)
	median := Percentile(medianCopy, 0.5)
	thresh := median * p.NsMedianMult

	if err := saveRecent(h.path, h.recent); err != nil {
		// Persistence failure degrades the next run's warm start but does
		// not affect the quiet-time decision for this file, so it is not
		// treated as fatal: saveRecent is best-effort and its error is
		// swallowed here, matching the original's lack of an error return
		// from writeFloatArray.
		_ = err
	}

	return thresh
}

func loadRecent(path string, maxN int) []float64 {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var vals []float64
	for {
		var v float32
		if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
			break
		}
		vals = append(vals, float64(v))
	}
	if maxN > 0 && len(vals) > maxN {
		vals = vals[len(vals)-maxN:]
	}
	return vals
}

func saveRecent(path string, vals []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("quiettime: write percentile history: %w", err)
	}
	defer f.Close()

	for _, v := range vals {
		if err := binary.Write(f, binary.LittleEndian, float32(v)); err != nil {
			return fmt.Errorf("quiettime: write percentile history: %w", err)
		}
	}
	return nil
}
