// Package board defines the hardware a spiblock device is wired to: GPIO pins, edge-triggered
// digital interrupts and shared SPI buses. Implementations live in the genericlinux and fake
// subpackages.
package board

import (
	"context"
)

// A Board owns the pins and buses of one host. Devices look their resources up by the names
// given in the board's configuration.
type Board interface {
	// SPIByName returns an SPI bus by name.
	SPIByName(name string) (SPI, bool)

	// GPIOPinByName returns a GPIOPin by name. Asking for a pin that is already serving as a
	// digital interrupt returns a read-only view of that line.
	GPIOPinByName(name string) (GPIOPin, error)

	// DigitalInterruptByName returns the rising-edge interrupt for the named pin, creating it the
	// first time it is requested.
	DigitalInterruptByName(name string) (DigitalInterrupt, error)

	// SPINames returns the names of all known SPI buses.
	SPINames() []string

	// GPIOPinNames returns the names of all known GPIO pins.
	GPIOPinNames() []string

	// Close releases every line and bus the board has opened.
	Close(ctx context.Context) error
}
