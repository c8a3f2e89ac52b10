package decay

import (
	"math"
	"testing"
)

func TestNewAlpha(t *testing.T) {
	n := New(100, 0.25, 4, 0.1)
	want := 1 - math.Exp(-1.0/(0.25*100))
	if math.Abs(n.alpha-want) > 1e-12 {
		t.Errorf("alpha = %v, want %v", n.alpha, want)
	}
}

func TestApplyWarmsUpFromFirstSamples(t *testing.T) {
	n := New(10, 1.0, 1e9, 1e9) // huge ignoreThresh: nothing is ever an outlier
	x := []float64{2, 2, 2, 2, 2, 2, 2, 2, 2, 2}
	out := n.Apply(x, 0.2, false) // warmTime=0.2s -> 2 warmup samples
	if out[0] != 2 {
		t.Errorf("out[0] = %v, want 2 (constant input stays at its own mean)", out[0])
	}
	if n.runMean != 2 {
		t.Errorf("runMean = %v, want 2", n.runMean)
	}
}

func TestApplyDoDivNormalisesBySelf(t *testing.T) {
	n := New(10, 1.0, 1e9, 1e9)
	x := []float64{5, 5, 5, 5, 5}
	out := n.Apply(x, 0.1, true)
	for i, v := range out {
		if math.Abs(v-1.0) > 1e-9 {
			t.Errorf("out[%d] = %v, want ~1.0 (constant signal divided by its own mean)", i, v)
		}
	}
}

func TestApplyIgnoresTransientOutlier(t *testing.T) {
	// ignoreLimT large enough that a single-sample spike never persists
	// long enough to reset the running mean.
	n := New(10, 1.0, 2.0, 10.0) // ignoreLimSam = round(10*10) = 100

	x := make([]float64, 20)
	for i := range x {
		x[i] = 1.0
	}
	x[10] = 1000 // a single loud transient, well above runMean*ignoreThresh=2

	n.Apply(x, 1.0, false) // warmTime=1.0s -> 10 warmup samples, all 1.0
	if math.Abs(n.runMean-1.0) > 1e-6 {
		t.Errorf("runMean = %v, want ~1.0: a brief transient should not move the running mean", n.runMean)
	}
}

func TestApplyResetsAfterPersistentOutlier(t *testing.T) {
	// ignoreLimSam = round(0.5*10) = 5: after 5 consecutive outlier
	// samples, the 6th resets the running mean to track them.
	n := New(10, 1.0, 2.0, 0.5)

	x := make([]float64, 20)
	for i := range x {
		x[i] = 1.0
	}
	for i := 10; i < 20; i++ {
		x[i] = 50 // persistent loud run, well above runMean*ignoreThresh
	}

	n.Apply(x, 1.0, false) // warmTime=1.0s -> 10 warmup samples, all 1.0
	if n.runMean == 1.0 {
		t.Error("runMean should have been reset by the persistent outlier run")
	}
}

func TestApplyWarmsUpFreshEveryCall(t *testing.T) {
	// A Normalizer built with New and fed directly (no seeding) always
	// re-warms its running mean from its own first samples, matching
	// original_source/ermaNew.c:156's pPrev==NULL on every segment.
	first := New(10, 1.0, 1e9, 1e9)
	first.Apply([]float64{100, 100, 100}, 1.0, false)

	second := New(10, 1.0, 1e9, 1e9)
	out := second.Apply([]float64{1, 1, 1}, 1.0, false)
	if out[0] != 1 {
		t.Errorf("out[0] = %v, want 1: a fresh Normalizer must not inherit the previous segment's mean", out[0])
	}
}
