package watchdog

import "testing"

func TestNoopNeverStops(t *testing.T) {
	var w Watchdog = Noop{}
	if w.ShouldStop() {
		t.Error("Noop.ShouldStop() = true, want false")
	}
}
