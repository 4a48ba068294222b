package genericlinux

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"go.viam.com/spiblock/components/board"
)

type spiBus struct {
	mu  sync.Mutex
	bus string
}

type spiHandle struct {
	bus      *spiBus
	isClosed bool
}

// OpenHandle locks the bus until the returned handle is closed.
func (sb *spiBus) OpenHandle() (board.SPIHandle, error) {
	sb.mu.Lock()
	return &spiHandle{bus: sb}, nil
}

func (sb *spiBus) Close(ctx context.Context) error {
	return nil
}

// Rx opens the spidev port for chipSelect on this bus, configures it, and clocks rx full.
func (sh *spiHandle) Rx(
	ctx context.Context,
	baud uint,
	chipSelect string,
	mode uint,
	bitsPerWord uint,
	rx []byte,
) (err error) {
	if sh.isClosed {
		return errors.New("can't use Rx() on an already closed SPIHandle")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	busPort := fmt.Sprintf("SPI%s.%s", sh.bus.bus, chipSelect)
	port, err := spireg.Open(busPort)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, port.Close())
	}()

	c, err := port.Connect(physic.Hertz*physic.Frequency(baud), spi.Mode(mode), int(bitsPerWord))
	if err != nil {
		return err
	}
	if err := rxPackets(c, rx); err != nil {
		return errors.Wrapf(err, "receiving %d bytes on %s", len(rx), busPort)
	}
	return nil
}

// rxPackets performs one chip-select-framed read. Reads longer than the port's transfer limit are
// split into packets that keep chip select asserted between them. spidev also caps the whole
// message, so blocks bigger than its bufsiz module parameter need that parameter raised.
func rxPackets(c spi.Conn, rx []byte) error {
	maxTx := len(rx)
	if limits, ok := c.(conn.Limits); ok {
		if m := limits.MaxTxSize(); m > 0 && m < maxTx {
			maxTx = m
		}
	}
	if maxTx >= len(rx) {
		return c.Tx(nil, rx)
	}

	packets := make([]spi.Packet, 0, (len(rx)+maxTx-1)/maxTx)
	for off := 0; off < len(rx); off += maxTx {
		end := min(off+maxTx, len(rx))
		packets = append(packets, spi.Packet{R: rx[off:end], KeepCS: end < len(rx)})
	}
	return c.TxPackets(packets)
}

func (sh *spiHandle) Close() error {
	if sh.isClosed {
		return nil
	}
	sh.isClosed = true
	sh.bus.mu.Unlock()
	return nil
}
