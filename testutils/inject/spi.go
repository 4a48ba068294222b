package inject

import (
	"context"

	"go.viam.com/spiblock/components/board"
)

// SPI is an injected SPI.
type SPI struct {
	board.SPI
	OpenHandleFunc func() (board.SPIHandle, error)
	CloseFunc      func(ctx context.Context) error
}

// OpenHandle calls the injected OpenHandle or the real version.
func (s *SPI) OpenHandle() (board.SPIHandle, error) {
	if s.OpenHandleFunc == nil {
		return s.SPI.OpenHandle()
	}
	return s.OpenHandleFunc()
}

// Close calls the injected Close or the real version.
func (s *SPI) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.SPI == nil {
			return nil
		}
		return s.SPI.Close(ctx)
	}
	return s.CloseFunc(ctx)
}

// SPIHandle is an injected connection to an SPI bus.
type SPIHandle struct {
	board.SPIHandle
	RxFunc    func(ctx context.Context, baud uint, chipSelect string, mode, bitsPerWord uint, rx []byte) error
	CloseFunc func() error
}

// Rx calls the injected RxFunc or the real version.
func (s *SPIHandle) Rx(
	ctx context.Context,
	baud uint,
	chipSelect string,
	mode uint,
	bitsPerWord uint,
	rx []byte,
) error {
	if s.RxFunc == nil {
		return s.SPIHandle.Rx(ctx, baud, chipSelect, mode, bitsPerWord, rx)
	}
	return s.RxFunc(ctx, baud, chipSelect, mode, bitsPerWord, rx)
}

// Close calls the injected CloseFunc or the real version.
func (s *SPIHandle) Close() error {
	if s.CloseFunc == nil {
		if s.SPIHandle == nil {
			return nil
		}
		return s.SPIHandle.Close()
	}
	return s.CloseFunc()
}
