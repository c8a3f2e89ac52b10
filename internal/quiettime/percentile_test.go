package quiettime

import (
	"math"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

func TestPercentileMinMax(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 200).Draw(t, "x")

		minCopy := slices.Clone(x)
		maxCopy := slices.Clone(x)

		gotMin := Percentile(minCopy, 0.0)
		gotMax := Percentile(maxCopy, 1.0)

		wantMin := slices.Min(x)
		wantMax := slices.Max(x)

		if gotMin != wantMin {
			t.Fatalf("Percentile(x,0) = %v, want min %v", gotMin, wantMin)
		}
		if gotMax != wantMax {
			t.Fatalf("Percentile(x,1) = %v, want max %v", gotMax, wantMax)
		}
	})
}

func TestPercentileConstantArray(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "n")
		v := rapid.Float64Range(-1e3, 1e3).Draw(t, "v")
		pct := rapid.Float64Range(0, 1).Draw(t, "pct")

		x := make([]float64, n)
		for i := range x {
			x[i] = v
		}
		got := Percentile(x, pct)
		if got != v {
			t.Fatalf("Percentile(constant %v, %v) = %v, want %v", v, pct, got, v)
		}
	})
}

func TestPercentileReturnsAnElement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 200).Draw(t, "x")
		orig := slices.Clone(x)
		pct := rapid.Float64Range(0, 1).Draw(t, "pct")

		got := Percentile(x, pct)
		found := false
		for _, v := range orig {
			if v == got {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("Percentile(x,%v) = %v is not an element of x", pct, got)
		}
	})
}

func TestPercentileMatchesSortedRank(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.SliceOfN(rapid.Float64Range(-1e6, 1e6), 1, 200).Draw(t, "x")
		pct := rapid.Float64Range(0, 1).Draw(t, "pct")

		sorted := slices.Clone(x)
		slices.Sort(sorted)
		rank := int(math.Round(pct * float64(len(sorted)-1)))
		want := sorted[rank]

		got := Percentile(slices.Clone(x), pct)
		if got != want {
			t.Fatalf("Percentile(x,%v) = %v, want rank-%d value %v", pct, got, rank, want)
		}
	})
}
