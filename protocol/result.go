package protocol

import (
	"context"
	"time"

	"go.viam.com/spiblock/components/board"
)

// Result is the outcome of one transfer attempt.
type Result struct {
	// Seq numbers attempts from 1 in the order they ran.
	Seq uint64
	// Tick is the rising edge that started the attempt.
	Tick board.Tick
	// Payload is the validated block without its trailer, or nil when Err is set. It aliases the
	// session's receive buffer and is only valid until the handler returns.
	Payload []byte
	// Err is a *BusError or a *ChecksumMismatchError.
	Err      error
	Started  time.Time
	Duration time.Duration
}

// OK reports whether the attempt produced a validated payload.
func (r Result) OK() bool {
	return r.Err == nil
}

// A ResultHandler is called on the session's worker for every completed attempt. The next
// attempt does not start until it returns. A handler that panics is logged and skipped.
type ResultHandler func(ctx context.Context, result Result)

// Stats are running totals for a session.
type Stats struct {
	Attempts           int64         `json:"attempts"`
	Successes          int64         `json:"successes"`
	BusFailures        int64         `json:"bus_failures"`
	ChecksumMismatches int64         `json:"checksum_mismatches"`
	CoalescedEdges     int64         `json:"coalesced_edges"`
	DroppedEdges       int64         `json:"dropped_edges"`
	BusyAsserts        int64         `json:"busy_asserts"`
	BusyDeasserts      int64         `json:"busy_deasserts"`
	LastTransfer       time.Duration `json:"last_transfer"`
}
