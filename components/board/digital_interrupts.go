package board

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Tick represents a signal received by an interrupt pin. This signal is communicated
// via registered callbacks to the user.
type Tick struct {
	Name             string
	High             bool
	TimestampNanosec uint64
}

// A TickCallback is invoked for every tick of a digital interrupt. Callbacks run on the goroutine
// that watches the hardware line, so they must return quickly and never block.
type TickCallback func(Tick)

// DigitalInterrupt represents a configured interrupt on the board that fires on a rising edge of
// its pin.
type DigitalInterrupt interface {
	// Name returns the name of the interrupt.
	Name() string

	// Value returns the number of rising edges seen so far.
	Value(ctx context.Context, extra map[string]interface{}) (int64, error)

	// AddCallback registers cb to be called for every tick. The returned function unregisters it;
	// once it returns, cb will not be called again.
	AddCallback(cb TickCallback) (remove func())
}

// A BasicDigitalInterrupt counts rising edges and fans ticks out to callbacks. Hardware backed
// interrupts embed it and feed it with Tick.
type BasicDigitalInterrupt struct {
	cfg   DigitalInterruptConfig
	count atomic.Int64

	mu        sync.Mutex
	nextID    uint64
	callbacks map[uint64]TickCallback
}

// NewBasicDigitalInterrupt returns an interrupt with no callbacks and a zero count.
func NewBasicDigitalInterrupt(cfg DigitalInterruptConfig) *BasicDigitalInterrupt {
	return &BasicDigitalInterrupt{cfg: cfg, callbacks: map[uint64]TickCallback{}}
}

// Name returns the name of the interrupt.
func (i *BasicDigitalInterrupt) Name() string {
	return i.cfg.Name
}

// Config returns the interrupt's configuration.
func (i *BasicDigitalInterrupt) Config() DigitalInterruptConfig {
	return i.cfg
}

// Value returns the number of rising edges seen so far.
func (i *BasicDigitalInterrupt) Value(ctx context.Context, extra map[string]interface{}) (int64, error) {
	return i.count.Load(), nil
}

// Tick records an edge and hands it to every registered callback. Callbacks are invoked while the
// registration lock is held so that a removal that has returned is never followed by a late call.
func (i *BasicDigitalInterrupt) Tick(ctx context.Context, high bool, nanoseconds uint64) error {
	if high {
		i.count.Inc()
	}

	tick := Tick{Name: i.cfg.Name, High: high, TimestampNanosec: nanoseconds}

	i.mu.Lock()
	defer i.mu.Unlock()
	for _, cb := range i.callbacks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cb(tick)
	}
	return nil
}

// AddCallback registers cb to be called for every tick.
func (i *BasicDigitalInterrupt) AddCallback(cb TickCallback) func() {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := i.nextID
	i.nextID++
	i.callbacks[id] = cb

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			defer i.mu.Unlock()
			delete(i.callbacks, id)
		})
	}
}
