// Package gpio implements the host/self handshake ERMA performs with the
// recorder it shares storage with: wait for the recorder's "active" line to
// go high before processing, hold a "self active" line high for the
// duration, and watch for the recorder line dropping mid-run to request an
// early stop between files. Grounded in original_source/gpio.c (a sysfs
// bit-banger) and original_source/ErmaMain.c's call sequence, reimplemented
// on the modern character-device GPIO API.
package gpio

import (
	"context"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// Handshake is the abstract contract described in the spec's external
// interfaces section: an input line polled before starting and during
// processing, and an output line held high for the run's duration. A
// Handshake backed by unavailable hardware (non-embedded build, unexported
// pin) degrades to treating the input as always-high rather than erroring,
// per the spec's error-handling taxonomy.
type Handshake interface {
	// WaitForHost blocks, polling at 1 Hz, until the host-active line reads
	// high (or ctx is done between polls).
	WaitForHost(ctx context.Context) error
	// HostActive reports the host-active line's current level.
	HostActive() (bool, error)
	// SetSelfActive drives the self-active output line.
	SetSelfActive(active bool) error
	Close() error
}

const pollInterval = time.Second

// New requests the two configured lines on chip (e.g. "gpiochip0") and
// returns a Handshake backed by them. If the chip or either line is
// unavailable, it returns a stub Handshake that always reports the host as
// active and silently discards SetSelfActive, per the spec's "GPIO
// unavailable -> ignored" rule, along with the error that caused the
// fallback so the caller can log it.
func New(chip string, hostActivePin, selfActivePin int) (Handshake, error) {
	in, err := gpiocdev.RequestLine(chip, hostActivePin, gpiocdev.AsInput)
	if err != nil {
		return stub{}, fmt.Errorf("gpio: request host-active line %d: %w", hostActivePin, err)
	}
	out, err := gpiocdev.RequestLine(chip, selfActivePin, gpiocdev.AsOutput(0))
	if err != nil {
		in.Close()
		return stub{}, fmt.Errorf("gpio: request self-active line %d: %w", selfActivePin, err)
	}
	return &cdevHandshake{in: in, out: out}, nil
}

type cdevHandshake struct {
	in  *gpiocdev.Line
	out *gpiocdev.Line
}

func (h *cdevHandshake) HostActive() (bool, error) {
	v, err := h.in.Value()
	if err != nil {
		return false, fmt.Errorf("gpio: read host-active: %w", err)
	}
	return v != 0, nil
}

func (h *cdevHandshake) WaitForHost(ctx context.Context) error {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		active, err := h.HostActive()
		if err != nil {
			return err
		}
		if active {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (h *cdevHandshake) SetSelfActive(active bool) error {
	v := 0
	if active {
		v = 1
	}
	if err := h.out.SetValue(v); err != nil {
		return fmt.Errorf("gpio: set self-active: %w", err)
	}
	return nil
}

func (h *cdevHandshake) Close() error {
	errIn := h.in.Close()
	errOut := h.out.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}

// stub is the degraded Handshake used when the GPIO chardev isn't
// available: the host line reads as always-active and self-active writes
// are no-ops.
type stub struct{}

func (stub) WaitForHost(ctx context.Context) error  { return nil }
func (stub) HostActive() (bool, error)              { return true, nil }
func (stub) SetSelfActive(active bool) error        { return nil }
func (stub) Close() error                           { return nil }
