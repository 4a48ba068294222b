// Package fake implements a fake board.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/utils"
)

// A Config describes the configuration of a fake board and all of its connected parts.
type Config struct {
	SPIs              []board.SPIConfig              `json:"spis,omitempty"`
	DigitalInterrupts []board.DigitalInterruptConfig `json:"digital_interrupts,omitempty"`
	// TickInterval, when set, pulses every digital interrupt on this period (e.g. "500ms").
	TickInterval string `json:"tick_interval,omitempty"`
	FailNew      bool   `json:"fail_new"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	for idx, conf := range conf.SPIs {
		if err := conf.Validate(fmt.Sprintf("%s.%s.%d", path, "spis", idx)); err != nil {
			return err
		}
	}
	for idx, conf := range conf.DigitalInterrupts {
		if err := conf.Validate(fmt.Sprintf("%s.%s.%d", path, "digital_interrupts", idx)); err != nil {
			return err
		}
	}
	if conf.TickInterval != "" {
		if _, err := time.ParseDuration(conf.TickInterval); err != nil {
			return goutils.NewConfigValidationError(path, errors.Wrap(err, "bad tick_interval"))
		}
	}

	if conf.FailNew {
		return errors.New("whoops")
	}

	return nil
}

// NewBoard returns a new fake board.
func NewBoard(ctx context.Context, conf *Config, logger logging.Logger) (*Board, error) {
	if err := conf.Validate("board"); err != nil {
		return nil, err
	}

	b := &Board{
		Digitals: map[string]*DigitalInterrupt{},
		GPIOPins: map[string]*GPIOPin{},
		SPIs:     map[string]*SPI{},
		logger:   logger,
		workers:  utils.NewStoppableWorkers(),
	}
	for _, c := range conf.SPIs {
		b.SPIs[c.Name] = &SPI{}
	}
	for _, c := range conf.DigitalInterrupts {
		b.Digitals[c.Name] = NewDigitalInterrupt(c, b.pin(c.Pin))
	}

	if conf.TickInterval != "" {
		interval, err := time.ParseDuration(conf.TickInterval)
		if err != nil {
			return nil, err
		}
		for _, di := range b.Digitals {
			b.workers.AddWorkers(func(ctx context.Context) {
				for goutils.SelectContextOrWait(ctx, interval) {
					if err := di.Pulse(ctx); err != nil {
						return
					}
				}
			})
		}
	}
	return b, nil
}

// A Board provides in-memory pins, interrupts and SPI buses in order to implement a Board.
type Board struct {
	mu         sync.RWMutex
	Digitals   map[string]*DigitalInterrupt
	GPIOPins   map[string]*GPIOPin
	SPIs       map[string]*SPI
	logger     logging.Logger
	CloseCount int

	workers utils.StoppableWorkers
}

// Expects b.mu to be held, or b to not be shared yet.
func (b *Board) pin(name string) *GPIOPin {
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p
}

// SPIByName returns the SPI bus by the given name if it exists.
func (b *Board) SPIByName(name string) (board.SPI, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.SPIs[name]
	if !ok {
		return nil, false
	}
	return s, true
}

// DigitalInterruptByName returns the interrupt by the given name, or by the name of its pin, if it
// exists.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if d, ok := b.Digitals[name]; ok {
		return d, nil
	}
	for _, d := range b.Digitals {
		if d.Config().Pin == name {
			return d, nil
		}
	}
	return nil, utils.NewUnknownNameError("digital interrupt", name)
}

// GPIOPinByName returns the GPIO pin by the given name, creating it if it does not exist.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pin(name), nil
}

// SPINames returns the names of all SPI buses.
func (b *Board) SPINames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := lo.Keys(b.SPIs)
	sort.Strings(names)
	return names
}

// GPIOPinNames returns the names of every pin asked for so far.
func (b *Board) GPIOPinNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := lo.Keys(b.GPIOPins)
	sort.Strings(names)
	return names
}

// Close stops any tick workers.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++

	b.workers.Stop()
	return nil
}

// A GPIOPin reads back the same set values and remembers every level it was driven to.
type GPIOPin struct {
	mu      sync.Mutex
	high    bool
	history []bool
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	gp.high = high
	gp.history = append(gp.history, high)
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return gp.high, nil
}

// History returns every level passed to Set, oldest first.
func (gp *GPIOPin) History() []bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	return append([]bool(nil), gp.history...)
}

// DigitalInterrupt is a fake digital interrupt whose edges are produced by Pulse.
type DigitalInterrupt struct {
	*board.BasicDigitalInterrupt
	pin *GPIOPin
}

// NewDigitalInterrupt returns a new fake digital interrupt that drives pin when pulsed.
func NewDigitalInterrupt(conf board.DigitalInterruptConfig, pin *GPIOPin) *DigitalInterrupt {
	return &DigitalInterrupt{
		BasicDigitalInterrupt: board.NewBasicDigitalInterrupt(conf),
		pin:                   pin,
	}
}

// Pulse raises the interrupt's pin, delivers a rising edge, and lowers the pin again.
func (s *DigitalInterrupt) Pulse(ctx context.Context) error {
	if err := s.pin.Set(ctx, true, nil); err != nil {
		return err
	}
	if err := s.Tick(ctx, true, uint64(time.Now().UnixNano())); err != nil {
		return err
	}
	return s.pin.Set(ctx, false, nil)
}

// SPI is a fake SPI bus. Received bytes come from Fill, or are all zero when Fill is unset.
type SPI struct {
	mu sync.Mutex

	fillMu    sync.Mutex
	fill      func(rx []byte) error
	transfers int
}

// SetFill replaces the function that produces received bytes.
func (s *SPI) SetFill(fill func(rx []byte) error) {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.fill = fill
}

// Transfers returns how many Rx calls have completed, successful or not.
func (s *SPI) Transfers() int {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.transfers
}

// OpenHandle locks the bus until the returned handle is closed.
func (s *SPI) OpenHandle() (board.SPIHandle, error) {
	s.mu.Lock()
	return &spiHandle{bus: s}, nil
}

// Close does nothing.
func (s *SPI) Close(ctx context.Context) error {
	return nil
}

type spiHandle struct {
	bus      *SPI
	isClosed bool
}

func (h *spiHandle) Rx(ctx context.Context, baud uint, chipSelect string, mode, bitsPerWord uint, rx []byte) error {
	if h.isClosed {
		return errors.New("can't use Rx() on an already closed SPIHandle")
	}

	h.bus.fillMu.Lock()
	defer h.bus.fillMu.Unlock()
	h.bus.transfers++
	if h.bus.fill == nil {
		clear(rx)
		return nil
	}
	return h.bus.fill(rx)
}

func (h *spiHandle) Close() error {
	if h.isClosed {
		return nil
	}
	h.isClosed = true
	h.bus.mu.Unlock()
	return nil
}
