// Package genericlinux implements a Linux board on top of the GPIO character device (by way of
// mkch's gpio package) or periph.io's GPIO registry, with SPI buses on spidev through periph.io.
package genericlinux

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"periph.io/x/host/v3"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/utils"
)

var _ = board.Board(&Board{})

// gpioPin is a pin this board has opened and must release on Close.
type gpioPin interface {
	board.GPIOPin
	Close() error
}

// digitalInterrupt is an interrupt this board has opened and must release on Close.
type digitalInterrupt interface {
	board.DigitalInterrupt
	level() (bool, error)
	Close() error
}

// Board is a Linux board. Pins are opened lazily the first time they are asked for, so a
// configuration can list more pins than a given device uses.
type Board struct {
	mu     sync.Mutex
	driver string
	pins   map[string]PinConfig
	spis   map[string]*spiBus
	logger logging.Logger

	gpios map[string]gpioPin
	// interrupts are keyed by pin name. interruptPins maps configured interrupt names to pins.
	interrupts    map[string]digitalInterrupt
	interruptPins map[string]string
}

// NewBoard builds a board from conf. Configured digital interrupts are opened immediately so a
// missing line is reported here rather than at first use.
func NewBoard(ctx context.Context, conf *Config, logger logging.Logger) (*Board, error) {
	if err := conf.Validate("board"); err != nil {
		return nil, err
	}

	if len(conf.SPIs) != 0 || conf.driver() == DriverPeriph {
		// Registers the spidev and sysfs/cdev drivers periph.io looks buses and pins up in.
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "failed to initialize periph.io host drivers")
		}
	}

	b := &Board{
		driver:        conf.driver(),
		pins:          make(map[string]PinConfig, len(conf.Pins)),
		spis:          make(map[string]*spiBus, len(conf.SPIs)),
		logger:        logger,
		gpios:         map[string]gpioPin{},
		interrupts:    map[string]digitalInterrupt{},
		interruptPins: map[string]string{},
	}
	for _, pc := range conf.Pins {
		b.pins[pc.Name] = pc
	}
	for _, spiConf := range conf.SPIs {
		b.spis[spiConf.Name] = &spiBus{bus: spiConf.BusSelect}
	}

	for _, diConf := range conf.DigitalInterrupts {
		if _, err := b.createDigitalInterrupt(diConf); err != nil {
			return nil, multierr.Combine(err, b.Close(ctx))
		}
		b.interruptPins[diConf.Name] = diConf.Pin
	}
	return b, nil
}

// SPIByName returns an SPI bus by name.
func (b *Board) SPIByName(name string) (board.SPI, bool) {
	s, ok := b.spis[name]
	if !ok {
		return nil, false
	}
	return s, true
}

// SPINames returns the names of all known SPI buses.
func (b *Board) SPINames() []string {
	names := lo.Keys(b.spis)
	sort.Strings(names)
	return names
}

// GPIOPinNames returns the names of all configured GPIO pins.
func (b *Board) GPIOPinNames() []string {
	names := lo.Keys(b.pins)
	sort.Strings(names)
	return names
}

// GPIOPinByName returns a GPIOPin by name.
func (b *Board) GPIOPinByName(pinName string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A configured interrupt name reads the level of the interrupt's line.
	if configuredPin, ok := b.interruptPins[pinName]; ok {
		pinName = configuredPin
	}
	if di, ok := b.interrupts[pinName]; ok {
		return gpioInterruptWrapperPin{di}, nil
	}
	if pin, ok := b.gpios[pinName]; ok {
		return pin, nil
	}

	pc, ok := b.pins[pinName]
	if !ok {
		return nil, errors.Errorf("cannot find GPIO for unknown pin: %s", pinName)
	}
	var pin gpioPin
	var err error
	if b.driver == DriverPeriph {
		pin, err = newPeriphPin(pc)
	} else {
		pin, err = newCdevPin(pc, b.logger)
	}
	if err != nil {
		return nil, err
	}
	b.gpios[pinName] = pin
	return pin, nil
}

// DigitalInterruptByName returns the interrupt configured under name, or creates a rising-edge
// interrupt on the pin called name.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pinName := name
	if configuredPin, ok := b.interruptPins[name]; ok {
		pinName = configuredPin
	}
	if di, ok := b.interrupts[pinName]; ok {
		return di, nil
	}
	return b.createDigitalInterrupt(board.DigitalInterruptConfig{Name: name, Pin: pinName})
}

// Expects b.mu to be held, or b to not be shared yet.
func (b *Board) createDigitalInterrupt(cfg board.DigitalInterruptConfig) (digitalInterrupt, error) {
	pc, ok := b.pins[cfg.Pin]
	if !ok {
		return nil, utils.NewUnknownNameError("interrupt pin", cfg.Pin)
	}

	// A line can only be requested once. If the pin was opened as a plain GPIO, give it up so the
	// interrupt can claim it.
	if pin, ok := b.gpios[cfg.Pin]; ok {
		if err := pin.Close(); err != nil {
			return nil, err
		}
		delete(b.gpios, cfg.Pin)
	}

	var di digitalInterrupt
	var err error
	if b.driver == DriverPeriph {
		di, err = newPeriphInterrupt(cfg, pc, b.logger)
	} else {
		di, err = newCdevInterrupt(cfg, pc, b.logger)
	}
	if err != nil {
		return nil, err
	}
	b.interrupts[cfg.Pin] = di
	return di, nil
}

// Close releases every line and bus the board has opened.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for _, di := range b.interrupts {
		err = multierr.Combine(err, di.Close())
	}
	for _, pin := range b.gpios {
		err = multierr.Combine(err, pin.Close())
	}
	for _, bus := range b.spis {
		err = multierr.Combine(err, bus.Close(ctx))
	}
	b.interrupts = map[string]digitalInterrupt{}
	b.gpios = map[string]gpioPin{}
	return err
}

// struct implements board.GPIOPin to support reading current state of digital interrupt pins as GPIO inputs.
type gpioInterruptWrapperPin struct {
	interrupt digitalInterrupt
}

func (gp gpioInterruptWrapperPin) Set(ctx context.Context, isHigh bool, extra map[string]interface{}) error {
	return board.ErrReadOnlyPin
}

func (gp gpioInterruptWrapperPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	return gp.interrupt.level()
}

// chipPath accepts either "gpiochip0" or "/dev/gpiochip0".
func chipPath(chip string) string {
	if strings.HasPrefix(chip, "/") {
		return chip
	}
	return "/dev/" + chip
}
