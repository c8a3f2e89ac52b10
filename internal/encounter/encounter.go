// Package encounter implements the ERMA encounter aggregator (C7): turn a
// cross-file list of click times into a list of encounter spans, where an
// encounter is a run of blockLenS-second time blocks with enough clicks in
// enough of them. Grounded in original_source/encounters.c.
package encounter

import (
	"math"
	"sort"

	"github.com/cimerspi/erma/internal/config"
)

const secPerDay = 24 * 60 * 60

// Span is an encounter's start and stop time, in D-time (days since the
// Epoch, as used throughout the spec for cross-file aggregation).
type Span struct {
	T0, T1 float64
}

// Find buckets clickTimesD (click times in D-time, need not be sorted)
// into blockLenS-second blocks, marks a block a "hit" if it has at least
// clicksPerBlock clicks, then reports every run of consecBlocks
// consecutive blocks containing at least hitsPerEnc hits as an encounter.
func Find(clickTimesD []float64, p *config.Params) []Span {
	if len(clickTimesD) == 0 {
		return nil
	}

	blocksPerDay := float64(secPerDay) / p.BlockLenS

	minTimeD, maxTimeD := clickTimesD[0], clickTimesD[0]
	for _, t := range clickTimesD {
		if t < minTimeD {
			minTimeD = t
		}
		if t > maxTimeD {
			maxTimeD = t
		}
	}
	minBlock := int(math.Floor(minTimeD * blocksPerDay))
	maxBlock := int(math.Ceil(maxTimeD * blocksPerDay))
	nBlocks := maxBlock - minBlock
	if nBlocks < 1 {
		nBlocks = 1
	}

	// Bucket every click directly into its block by index arithmetic: a
	// click at time t belongs to block floor(t*blocksPerDay)-minBlock,
	// since blocks are contiguous and exactly 1/blocksPerDay days long.
	// This runs in O(n) regardless of input order, unlike the original's
	// O(nBlocks*nClicks) per-block rescan of the whole click list.
	nHits := make([]int, nBlocks)
	for _, t := range clickTimesD {
		idx := int(math.Floor(t*blocksPerDay)) - minBlock
		if idx < 0 {
			idx = 0
		}
		if idx >= nBlocks {
			idx = nBlocks - 1
		}
		nHits[idx]++
	}

	isHit := make([]bool, nBlocks)
	for i, n := range nHits {
		isHit[i] = float64(n) >= p.ClicksPerBlock
	}

	consecBlocks := int(p.ConsecBlocks)
	var spans []Span
	nInConsec := 0
	inEnc := false
	encStart := 0

	for p0, p1 := -consecBlocks, 0; p0 < nBlocks; p0, p1 = p0+1, p1+1 {
		if p0 >= 0 && isHit[p0] {
			nInConsec--
		}
		if p1 < nBlocks && isHit[p1] {
			nInConsec++
		}

		encHere := float64(nInConsec) >= p.HitsPerEnc
		switch {
		case inEnc && encHere:
			// Encounter continues.
		case inEnc && !encHere:
			encEnd := maxInt(0, p0)
			for j := minInt(nBlocks, p1) - 1; j >= maxInt(0, p0); j-- {
				if isHit[j] {
					encEnd = j
					break
				}
			}
			spans = append(spans, Span{
				T0: float64(encStart+minBlock) / blocksPerDay,
				T1: float64(encEnd+minBlock) / blocksPerDay,
			})
		case !inEnc && encHere:
			for j := maxInt(0, p0); j < minInt(nBlocks, p1+1); j++ {
				if isHit[j] {
					encStart = j
					break
				}
			}
		}
		inEnc = encHere
	}

	// In the ordinary case (hitsPerEnc >= 1) the sliding window always
	// empties out by the scan's last step, so any open encounter is
	// closed from within the loop above. The one way it can still be open
	// here is a misconfigured hitsPerEnc <= 0, which makes "enough hits"
	// trivially true even for an empty window; close it anyway rather
	// than silently dropping it, using the last hit block as its end.
	if inEnc {
		encEnd := encStart
		for j := nBlocks - 1; j >= encStart; j-- {
			if isHit[j] {
				encEnd = j
				break
			}
		}
		spans = append(spans, Span{
			T0: float64(encStart+minBlock) / blocksPerDay,
			T1: float64(encEnd+minBlock) / blocksPerDay,
		})
	}

	return spans
}

// SortTimes sorts click times in place (D-time, ascending) — used before
// Find when the caller cannot already guarantee click order, and before
// report generation's per-encounter click-window selection.
func SortTimes(t []float64) {
	sort.Float64s(t)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
