// Package protocol pulls checksummed blocks from a peripheral over SPI. The peripheral raises
// READY when a block is waiting; the host raises BUSY for the length of each read, clocks the
// block in, and checks it against the CRC32 in its last four bytes.
package protocol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/utils"
)

// State is where a session's worker is in its cycle.
type State int32

const (
	// StateIdle is waiting for a rising edge on READY.
	StateIdle State = iota
	// StateTransferring is raising BUSY, reading, lowering BUSY and validating.
	StateTransferring
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTransferring:
		return "transferring"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// An Option configures a Session at Bind.
type Option func(*Session)

// WithResultHandler adds a handler that receives every Result.
func WithResultHandler(handler ResultHandler) Option {
	return func(s *Session) {
		s.handlers = append(s.handlers, handler)
	}
}

// WithClock replaces the clock transfers are timed with.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// A Session is bound to one peripheral. It owns the receive buffer and both handshake lines, and
// runs a single worker that performs every transfer, so attempts never overlap.
type Session struct {
	name     string
	conf     Config
	logger   logging.Logger
	clock    clock.Clock
	handlers []ResultHandler

	reader         *BlockReader
	handshake      *Handshake
	validator      *Validator
	ready          board.GPIOPin
	removeCallback func()

	// buf is only touched by the worker.
	buf []byte
	seq uint64

	// edges hands rising edges from the interrupt callback to the worker. It holds at most one.
	edges      chan board.Tick
	dropLate   bool
	state      atomic.Int32
	edgeLogger rate.Sometimes

	attempts     atomic.Int64
	successes    atomic.Int64
	busFailures  atomic.Int64
	mismatches   atomic.Int64
	coalesced    atomic.Int64
	dropped      atomic.Int64
	lastTransfer atomic.Duration

	workers   utils.StoppableWorkers
	closeOnce sync.Once
	closeErr  error
}

// Bind claims the resources conf names on b and starts servicing READY edges. BUSY is driven low
// before the first edge can be handled. If any resource cannot be had, no session is returned.
func Bind(
	ctx context.Context,
	b board.Board,
	name string,
	conf *Config,
	logger logging.Logger,
	opts ...Option,
) (*Session, error) {
	if err := conf.Validate(name); err != nil {
		return nil, err
	}

	s := &Session{
		name:       name,
		conf:       *conf,
		logger:     logger.Sublogger(name),
		clock:      clock.New(),
		validator:  NewValidator(conf.Checksum),
		buf:        make([]byte, conf.blockSize()+TrailerSize),
		edges:      make(chan board.Tick, 1),
		dropLate:   conf.edgePolicy() == EdgePolicyDrop,
		edgeLogger: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}

	bus, ok := b.SPIByName(conf.SPIBus)
	if !ok {
		return nil, errors.Errorf("%s: unknown SPI bus %q", name, conf.SPIBus)
	}
	s.reader = NewBlockReader(bus, conf.busParams())

	// The interrupt is requested before the READY pin so that boards hand back a view of the
	// interrupt's line rather than claiming it a second time.
	interrupt, err := b.DigitalInterruptByName(conf.ReadyPin)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: cannot get READY interrupt", name)
	}
	if s.ready, err = b.GPIOPinByName(conf.ReadyPin); err != nil {
		return nil, errors.Wrapf(err, "%s: cannot get READY pin", name)
	}
	busy, err := b.GPIOPinByName(conf.BusyPin)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: cannot get BUSY pin", name)
	}
	s.handshake = NewHandshake(busy)
	if err := s.handshake.DeassertBusy(ctx); err != nil {
		return nil, errors.Wrapf(err, "%s: cannot drive BUSY low", name)
	}

	s.workers = utils.NewStoppableWorkers(s.run)
	s.removeCallback = interrupt.AddCallback(s.signal)

	params := s.reader.Params()
	s.logger.Debugw("bound SPI device",
		"spi_bus", conf.SPIBus,
		"max_speed_hz", params.ClockSpeedHz,
		"chip_select", params.ChipSelect,
		"bits_per_word", params.BitsPerWord,
		"mode", fmt.Sprintf("0x%x", params.Mode),
		"ready_pin", conf.ReadyPin,
		"busy_pin", conf.BusyPin,
		"interrupt", interrupt.Name(),
		"block_size", conf.blockSize(),
		"checksum", s.validator.Variant().String(),
		"edge_policy", conf.edgePolicy(),
	)
	return s, nil
}

// Name returns the name the session was bound under.
func (s *Session) Name() string {
	return s.name
}

// Config returns the configuration the session was bound with.
func (s *Session) Config() Config {
	return s.conf
}

// State returns where the worker currently is.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns the session's running totals.
func (s *Session) Stats() Stats {
	asserts, deasserts := s.handshake.Counts()
	return Stats{
		Attempts:           s.attempts.Load(),
		Successes:          s.successes.Load(),
		BusFailures:        s.busFailures.Load(),
		ChecksumMismatches: s.mismatches.Load(),
		CoalescedEdges:     s.coalesced.Load(),
		DroppedEdges:       s.dropped.Load(),
		BusyAsserts:        asserts,
		BusyDeasserts:      deasserts,
		LastTransfer:       s.lastTransfer.Load(),
	}
}

// signal runs on the interrupt's goroutine and must never block. An edge that finds another one
// still waiting replaces it, so the worker always services the newest edge.
func (s *Session) signal(tick board.Tick) {
	if !tick.High {
		return
	}
	for {
		select {
		case s.edges <- tick:
			return
		default:
		}
		select {
		case <-s.edges:
			n := s.coalesced.Inc()
			s.edgeLogger.Do(func() {
				s.logger.Debugw("READY raised again before the previous edge was serviced", "coalesced", n)
			})
		default:
		}
	}
}

func (s *Session) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-s.edges:
			// Once started, an attempt runs to completion even if the session is closing.
			s.attempt(context.WithoutCancel(ctx), tick)
			if s.dropLate {
				select {
				case <-s.edges:
					s.dropped.Inc()
				default:
				}
			}
		}
	}
}

func (s *Session) attempt(ctx context.Context, tick board.Tick) {
	s.state.Store(int32(StateTransferring))
	defer s.state.Store(int32(StateIdle))

	s.seq++
	s.attempts.Inc()
	result := Result{Seq: s.seq, Tick: tick}

	readyHigh, err := s.ready.Get(ctx, nil)
	if err != nil {
		s.logger.Debugw("cannot read READY level", "error", err)
	}
	s.logger.Debugw("start spi", "seq", s.seq, "ready", readyHigh)

	var readErr error
	if err := s.handshake.AssertBusy(ctx); err != nil {
		result.Started = s.clock.Now()
		readErr = &BusError{Err: errors.Wrap(err, "cannot assert BUSY")}
	} else {
		// Only the bus read is timed.
		result.Started = s.clock.Now()
		readErr = s.reader.ReadBlock(ctx, s.buf)
		result.Duration = s.clock.Since(result.Started)
	}
	if err := s.handshake.DeassertBusy(ctx); err != nil {
		s.logger.Errorw("cannot deassert BUSY", "seq", s.seq, "error", err)
	}
	s.lastTransfer.Store(result.Duration)

	if readErr != nil {
		s.busFailures.Inc()
		result.Err = readErr
		s.logger.Errorw("block read failed", "seq", s.seq, "error", readErr)
	} else {
		s.logger.Debugw("ended spi", "seq", s.seq, "duration", result.Duration)
		payload, err := s.validator.Validate(s.buf)
		var mismatch *ChecksumMismatchError
		switch {
		case err == nil:
			s.successes.Inc()
			result.Payload = payload
		case errors.As(err, &mismatch):
			s.mismatches.Inc()
			result.Err = err
			s.logger.Errorw("checksum mismatch",
				"seq", s.seq,
				"received", fmt.Sprintf("0x%08x", mismatch.Received),
				"expected", fmt.Sprintf("0x%08x", mismatch.Expected),
			)
		default:
			s.mismatches.Inc()
			result.Err = err
			s.logger.Errorw("cannot validate block", "seq", s.seq, "error", err)
		}
	}

	for _, handler := range s.handlers {
		s.deliver(ctx, handler, result)
	}
}

// deliver calls handler, recovering a panic so the worker keeps servicing edges.
func (s *Session) deliver(ctx context.Context, handler ResultHandler, result Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("result handler panicked", "seq", result.Seq, "panic", r)
		}
	}()
	handler(ctx, result)
}

// Close stops handling edges, waits for an in-flight attempt to finish, and leaves BUSY low. The
// board's lines stay open; they belong to the board.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.removeCallback()
		s.workers.Stop()
		s.closeErr = s.handshake.DeassertBusy(ctx)
		s.logger.Debugw("unbound", "stats", s.Stats())
	})
	return s.closeErr
}
