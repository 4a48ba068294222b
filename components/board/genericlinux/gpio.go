//go:build linux

// This file is for GPIO pins using the ioctl interface, indirectly by way of mkch's gpio package.
package genericlinux

import (
	"context"
	"sync"

	"github.com/mkch/gpio"
	"go.viam.com/utils"

	"go.viam.com/spiblock/logging"
)

type cdevPin struct {
	// These values should both be considered immutable.
	devicePath string
	offset     uint32

	// These values are mutable. Lock the mutex when interacting with them.
	mu     sync.Mutex
	line   *gpio.Line
	output bool
	logger logging.Logger
}

func newCdevPin(pc PinConfig, logger logging.Logger) (gpioPin, error) {
	return &cdevPin{
		devicePath: chipPath(pc.Chip),
		offset:     uint32(pc.Line),
		logger:     logger,
	}, nil
}

// This is a private helper function that should only be called when the mutex is locked. It sets
// pin.line to a line requested in the given direction, reopening it if the direction changed.
// initial is only used for outputs.
func (pin *cdevPin) openGpioFd(output bool, initial byte) error {
	if pin.line != nil {
		if pin.output == output {
			return nil // If the pin is already opened, don't re-open it.
		}
		if err := pin.closeGpioFd(); err != nil {
			return err
		}
	}

	chip, err := gpio.OpenChip(pin.devicePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	direction := gpio.Input
	if output {
		direction = gpio.Output
	}
	line, err := chip.OpenLine(pin.offset, initial, direction, "spiblock-gpio")
	if err != nil {
		return err
	}
	pin.line = line
	pin.output = output
	return nil
}

func (pin *cdevPin) closeGpioFd() error {
	if pin.line == nil {
		return nil // If the pin is already closed, don't close it again.
	}
	err := pin.line.Close()
	pin.line = nil
	return err
}

// Set drives the pin. The first call requests the line as an output already at the wanted level,
// so it never glitches through the other one.
func (pin *cdevPin) Set(ctx context.Context, isHigh bool, extra map[string]interface{}) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	var value byte
	if isHigh {
		value = 1
	}
	if err := pin.openGpioFd(true, value); err != nil {
		return err
	}
	return pin.line.SetValue(value)
}

// Get reads the pin. Pins that were last driven report the level they are driven to.
func (pin *cdevPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if pin.line == nil {
		if err := pin.openGpioFd(false, 0); err != nil {
			return false, err
		}
	}

	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

func (pin *cdevPin) Close() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	return pin.closeGpioFd()
}
