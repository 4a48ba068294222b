package protocol

import (
	"context"
	"sync"

	"go.viam.com/spiblock/components/board"
)

// A Handshake drives the BUSY line that tells the peer the bus is in use.
type Handshake struct {
	busy board.GPIOPin

	mu        sync.Mutex
	asserted  bool
	asserts   int64
	deasserts int64
}

// NewHandshake returns a Handshake driving busy. It does not touch the pin; callers that need a
// known starting level call DeassertBusy.
func NewHandshake(busy board.GPIOPin) *Handshake {
	return &Handshake{busy: busy}
}

// AssertBusy drives BUSY high. Asserting an already asserted line does nothing.
func (h *Handshake) AssertBusy(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.asserted {
		return nil
	}
	if err := h.busy.Set(ctx, true, nil); err != nil {
		return err
	}
	h.asserted = true
	h.asserts++
	return nil
}

// DeassertBusy drives BUSY low. The line is driven even if it is believed to already be low, so a
// deassert always leaves the pin low, but only a deassert that follows an assert is counted.
func (h *Handshake) DeassertBusy(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.busy.Set(ctx, false, nil); err != nil {
		return err
	}
	if h.asserted {
		h.asserted = false
		h.deasserts++
	}
	return nil
}

// Asserted reports whether BUSY was last driven high.
func (h *Handshake) Asserted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.asserted
}

// Counts returns how many times BUSY has been raised and lowered.
func (h *Handshake) Counts() (asserts, deasserts int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.asserts, h.deasserts
}
