package detector

import (
	"math"
	"testing"

	"github.com/cimerspi/erma/internal/config"
)

func TestCalcAverageRatioBasic(t *testing.T) {
	num := []float64{1, 2, 3, 4, 5, 6}
	den := []float64{1, 1, 1, 1, 1, 1}
	ratio := calcAverageRatio(num, den, 3)

	// nRatio = nNum - (avgSam-1) = 6-2 = 4
	if len(ratio) != 4 {
		t.Fatalf("len(ratio) = %d, want 4", len(ratio))
	}
	// ratio[j] is the average of num[j:j+avgSam] over den's average (den is
	// constant 1, so ratio == average of num over the window).
	want := []float64{2, 3, 4, 5} // (1+2+3)/3, (2+3+4)/3, (3+4+5)/3, (4+5+6)/3
	for i, w := range want {
		if math.Abs(ratio[i]-w) > 1e-9 {
			t.Errorf("ratio[%d] = %v, want %v", i, ratio[i], w)
		}
	}
}

func TestCalcAverageRatioResyncsAcrossLoopBoundary(t *testing.T) {
	// With avgSam=4, nPerLoop takes its 1000-sample floor; make sure a signal
	// longer than one loop iteration still produces a continuous,
	// correctly-averaged ratio trace across the internal restart point.
	const avgSam = 4
	n := 2500 // several multiples of nPerLoop=max(1000,8)=1000
	num := make([]float64, n)
	den := make([]float64, n)
	for i := range num {
		num[i] = float64(i % 7)
		den[i] = 1
	}
	ratio := calcAverageRatio(num, den, avgSam)
	if len(ratio) != n-(avgSam-1) {
		t.Fatalf("len(ratio) = %d, want %d", len(ratio), n-(avgSam-1))
	}
	// ratio[1000] is the first value computed after the internal running
	// sums are restarted from scratch at the nPerLoop=1000 boundary; it
	// must still equal the same sliding-window average as if no restart
	// had happened.
	j := 1000
	want := (num[1000] + num[1001] + num[1002] + num[1003]) / 4
	if math.Abs(ratio[j]-want) > 1e-6 {
		t.Errorf("ratio[%d] = %v, want %v", j, ratio[j], want)
	}
}

func TestPeakNearFindsMaxWithinNeighbourhood(t *testing.T) {
	x := []float64{0, 1, 5, 2, 9, 3, 0}
	if got := peakNear(x, 2, 1); got != 2 {
		t.Errorf("peakNear(ix=2,nbd=1) = %d, want 2 (5 beats 1 and 2)", got)
	}
	if got := peakNear(x, 2, 2); got != 4 {
		t.Errorf("peakNear(ix=2,nbd=2) = %d, want 4 (9 is the widest max)", got)
	}
}

func TestPeakNearClampsAtBounds(t *testing.T) {
	x := []float64{9, 1, 2}
	if got := peakNear(x, 0, 5); got != 0 {
		t.Errorf("peakNear at left edge = %d, want 0", got)
	}
	x2 := []float64{1, 2, 9}
	if got := peakNear(x2, 2, 5); got != 2 {
		t.Errorf("peakNear at right edge = %d, want 2", got)
	}
}

func TestFindClicksGatesOnPowerAndRatio(t *testing.T) {
	p := config.Default()
	p.PowerThresh = 10
	p.RefractoryT = 0 // refractorySam = 0: every above-threshold run after a low run can click
	p.PeakNbdT = 0
	p.RatioThresh = 2

	const sRate = 100.0
	const bwNumerKHz = 1.0
	delaySam := 0

	// x is above powerThreshPerKHz (=10) at indices 5..7, otherwise low.
	x := make([]float64, 20)
	for i := 5; i <= 7; i++ {
		x[i] = 50
	}
	// ratio only clears ratioThresh at index 6.
	ratio := make([]float64, 20)
	ratio[6] = 3

	clicks := findClicks(x, 0, ratio, sRate, p, delaySam, bwNumerKHz)
	if len(clicks) != 1 {
		t.Fatalf("got %d clicks, want 1: %+v", len(clicks), clicks)
	}
	wantT := 6.0 / sRate
	if math.Abs(clicks[0].TimeS-wantT) > 1e-9 {
		t.Errorf("click time = %v, want %v", clicks[0].TimeS, wantT)
	}
}

func TestFindClicksRespectsRefractoryPeriod(t *testing.T) {
	p := config.Default()
	p.PowerThresh = 10
	p.RefractoryT = 0.1 // refractorySam = 10
	p.PeakNbdT = 0
	p.RatioThresh = 0

	const sRate = 100.0
	const bwNumerKHz = 1.0

	// The first blip is preceded by a long enough run of low samples to
	// register; the second, only 2 low samples after the first, is not.
	x := make([]float64, 30)
	x[15] = 50
	x[18] = 50
	ratio := make([]float64, 30)
	for i := range ratio {
		ratio[i] = 1
	}

	clicks := findClicks(x, 0, ratio, sRate, p, 0, bwNumerKHz)
	if len(clicks) != 1 {
		t.Fatalf("got %d clicks, want 1 (second blip within refractory period): %+v", len(clicks), clicks)
	}
}

func TestDetectProducesNoClicksOnSilence(t *testing.T) {
	p := config.Default()
	d, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	seg := make([]float64, 5000) // silence, well below 100kHz pass-through path
	clicks, err := d.Detect(seg, 0, 48000)
	if err != nil {
		t.Fatal(err)
	}
	if len(clicks) != 0 {
		t.Errorf("got %d clicks on silence, want 0: %+v", len(clicks), clicks)
	}
}

func TestDetectStickyBandSelectionAcrossSegments(t *testing.T) {
	p := config.Default()
	d, err := New(p)
	if err != nil {
		t.Fatal(err)
	}
	seg := make([]float64, 2000)
	if _, err := d.Detect(seg, 0, 48000); err != nil {
		t.Fatal(err)
	}
	first := d.sel.Numer()
	if _, err := d.Detect(seg, 1, 48000); err != nil {
		t.Fatal(err)
	}
	if d.sel.Numer() != first {
		t.Error("band selection should stick across segments within a run")
	}
}
