// Package watchdog defines the driver's wiring point for a power-budget
// collaborator. The spec's concurrency model (§5) assigns ownership of the
// run's power/time budget to a watchdog collaborator but leaves its
// enforcement out of scope; this package exists so the pipeline has a real,
// testable seam for it rather than an absent one.
package watchdog

// Watchdog is consulted by the pipeline between files. ShouldStop reports
// whether the run should end early for reasons outside the GPIO handshake
// (e.g. a power budget elapsing); a real implementation is out of scope.
type Watchdog interface {
	ShouldStop() bool
}

// Noop never asks for an early stop. It is the only implementation in this
// repository; enforcement of an actual power budget is deferred per the
// spec's open design notes.
type Noop struct{}

func (Noop) ShouldStop() bool { return false }
