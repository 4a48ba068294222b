package genericlinux

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/spiblock/components/board"
)

// GPIO drivers a Config can select.
const (
	// DriverCdev drives pins through the GPIO character device (/dev/gpiochipN).
	DriverCdev = "cdev"
	// DriverPeriph drives pins through periph.io's registry of host GPIOs.
	DriverPeriph = "periph"
)

// PinConfig names a GPIO line. Chip and Line locate it for the cdev driver; Global is the
// periph.io registry name (e.g. "GPIO23") and defaults to the pin name.
type PinConfig struct {
	Name   string `json:"name"`
	Chip   string `json:"chip,omitempty"`
	Line   int    `json:"line"`
	Global string `json:"global,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *PinConfig) Validate(path, driver string) error {
	if conf.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if driver == DriverCdev && conf.Chip == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "chip")
	}
	if conf.Line < 0 {
		return utils.NewConfigValidationError(path, errors.New("line must not be negative"))
	}
	return nil
}

// A Config describes the configuration of a board and all of its connected parts.
type Config struct {
	GPIODriver        string                         `json:"gpio_driver,omitempty"`
	Pins              []PinConfig                    `json:"pins,omitempty"`
	SPIs              []board.SPIConfig              `json:"spis,omitempty"`
	DigitalInterrupts []board.DigitalInterruptConfig `json:"digital_interrupts,omitempty"`
}

func (conf *Config) driver() string {
	if conf.GPIODriver == "" {
		return DriverCdev
	}
	return conf.GPIODriver
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	driver := conf.driver()
	if driver != DriverCdev && driver != DriverPeriph {
		return utils.NewConfigValidationError(path,
			errors.Errorf("unknown gpio_driver %q, expected %q or %q", conf.GPIODriver, DriverCdev, DriverPeriph))
	}
	seen := map[string]struct{}{}
	for idx, c := range conf.Pins {
		pinPath := fmt.Sprintf("%s.%s.%d", path, "pins", idx)
		if err := c.Validate(pinPath, driver); err != nil {
			return err
		}
		if _, dup := seen[c.Name]; dup {
			return utils.NewConfigValidationError(pinPath, errors.Errorf("duplicate pin name %q", c.Name))
		}
		seen[c.Name] = struct{}{}
	}
	for idx, c := range conf.SPIs {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "spis", idx)); err != nil {
			return err
		}
	}
	for idx, c := range conf.DigitalInterrupts {
		diPath := fmt.Sprintf("%s.%s.%d", path, "digital_interrupts", idx)
		if err := c.Validate(diPath); err != nil {
			return err
		}
		if _, ok := seen[c.Pin]; !ok {
			return utils.NewConfigValidationError(diPath, errors.Errorf("unknown pin %q", c.Pin))
		}
	}
	return nil
}
