package gpio

import (
	"context"
	"testing"
)

func TestStubHostAlwaysActive(t *testing.T) {
	var h Handshake = stub{}
	active, err := h.HostActive()
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Error("stub HostActive() = false, want true")
	}
}

func TestStubWaitForHostReturnsImmediately(t *testing.T) {
	var h Handshake = stub{}
	if err := h.WaitForHost(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestStubSetSelfActiveIsNoop(t *testing.T) {
	var h Handshake = stub{}
	if err := h.SetSelfActive(true); err != nil {
		t.Fatal(err)
	}
	if err := h.SetSelfActive(false); err != nil {
		t.Fatal(err)
	}
}

func TestNewFallsBackToStubWhenChipUnavailable(t *testing.T) {
	h, err := New("gpiochip-does-not-exist", 6, 12)
	if err == nil {
		t.Fatal("expected an error describing why the stub was used")
	}
	if h == nil {
		t.Fatal("expected a usable stub Handshake even on error")
	}
	active, err := h.HostActive()
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Error("fallback stub should report host as always active")
	}
}
