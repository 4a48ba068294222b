package protocol

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/spiblock/components/board"
)

// BusError is returned when a block could not be read off the bus. The read is not retried.
type BusError struct {
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus transfer failed: %v", e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}

// BusParams describe how a device is clocked on its bus.
type BusParams struct {
	ClockSpeedHz uint
	ChipSelect   string
	Mode         uint
	BitsPerWord  uint
}

// A BlockReader reads whole blocks from one device on a shared SPI bus.
type BlockReader struct {
	bus    board.SPI
	params BusParams
}

// NewBlockReader returns a BlockReader for the device at params on bus.
func NewBlockReader(bus board.SPI, params BusParams) *BlockReader {
	return &BlockReader{bus: bus, params: params}
}

// Params returns the bus parameters blocks are read with.
func (r *BlockReader) Params() BusParams {
	return r.params
}

// ReadBlock fills buf with one receive-only transaction. It blocks until every byte has been
// clocked in or the transfer fails; any failure is returned as a *BusError.
func (r *BlockReader) ReadBlock(ctx context.Context, buf []byte) error {
	handle, err := r.bus.OpenHandle()
	if err != nil {
		return &BusError{Err: errors.Wrap(err, "cannot open SPI handle")}
	}

	p := r.params
	rxErr := handle.Rx(ctx, p.ClockSpeedHz, p.ChipSelect, p.Mode, p.BitsPerWord, buf)
	if closeErr := handle.Close(); rxErr != nil || closeErr != nil {
		return &BusError{Err: multierr.Combine(rxErr, closeErr)}
	}
	return nil
}
