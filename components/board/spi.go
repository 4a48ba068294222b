package board

import (
	"context"
)

// SPI represents a shareable SPI bus on the board.
type SPI interface {
	// OpenHandle locks the shared bus and returns a handle interface that MUST be closed when done.
	OpenHandle() (SPIHandle, error)
	Close(ctx context.Context) error
}

// SPIHandle is similar to an io handle. It MUST be closed to release the bus.
type SPIHandle interface {
	// Rx performs a single receive-only SPI transaction, from chipselect enable to chipselect
	// disable, clocking in exactly len(rx) bytes into rx. Nothing meaningful is transmitted; the
	// controller shifts out zeros. Implementations must not retry on failure.
	Rx(
		ctx context.Context,
		baud uint,
		chipSelect string,
		mode uint,
		bitsPerWord uint,
		rx []byte,
	) error

	// Close closes the handle and releases the lock on the bus.
	Close() error
}
