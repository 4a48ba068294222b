package protocol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/components/board/fake"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/testutils/inject"
)

const (
	readyPin = "24"
	busyPin  = "23"
)

func newFakeBoard(t *testing.T) *fake.Board {
	t.Helper()
	b, err := fake.NewBoard(context.Background(), &fake.Config{
		SPIs:              []board.SPIConfig{{Name: "main", BusSelect: "0"}},
		DigitalInterrupts: []board.DigitalInterruptConfig{{Name: "ready", Pin: readyPin}},
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, b.Close(context.Background()), test.ShouldBeNil)
	})
	return b
}

func testConfig() *Config {
	return &Config{
		SPIBus:       "main",
		ClockSpeedHz: 1000000,
		ReadyPin:     readyPin,
		BusyPin:      busyPin,
		BlockSize:    16,
	}
}

// bind binds a session whose results are copied onto the returned channel.
func bind(t *testing.T, b board.Board, conf *Config, opts ...Option) (*Session, <-chan Result) {
	t.Helper()
	results := make(chan Result, 32)
	opts = append(opts, WithResultHandler(func(ctx context.Context, r Result) {
		if r.Payload != nil {
			r.Payload = append([]byte(nil), r.Payload...)
		}
		results <- r
	}))
	s, err := Bind(context.Background(), b, "device", conf, logging.NewTestLogger(t), opts...)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, s.Close(context.Background()), test.ShouldBeNil)
	})
	return s, results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a transfer result")
		return Result{}
	}
}

func fillWith(block []byte) func([]byte) error {
	return func(rx []byte) error {
		copy(rx, block)
		return nil
	}
}

func TestSessionValidBlock(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	block := signedBlock(t, make([]byte, 16))

	var busy *fake.GPIOPin
	var busyDuringRead atomic.Bool
	b.SPIs["main"].SetFill(func(rx []byte) error {
		test.That(t, len(rx), test.ShouldEqual, 20)
		high, _ := busy.Get(ctx, nil)
		busyDuringRead.Store(high)
		copy(rx, block)
		return nil
	})

	s, results := bind(t, b, testConfig())
	// The fake board creates pins on first use, so BUSY exists once bound.
	busy = b.GPIOPins[busyPin]
	test.That(t, busy, test.ShouldNotBeNil)
	test.That(t, s.State(), test.ShouldEqual, StateIdle)
	// BUSY starts low.
	test.That(t, busy.History(), test.ShouldResemble, []bool{false})

	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r := waitResult(t, results)
	test.That(t, r.OK(), test.ShouldBeTrue)
	test.That(t, r.Seq, test.ShouldEqual, 1)
	test.That(t, r.Tick.High, test.ShouldBeTrue)
	test.That(t, r.Tick.Name, test.ShouldEqual, "ready")
	test.That(t, r.Payload, test.ShouldResemble, make([]byte, 16))

	test.That(t, busyDuringRead.Load(), test.ShouldBeTrue)
	test.That(t, busy.History(), test.ShouldResemble, []bool{false, true, false})

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, s.State(), test.ShouldEqual, StateIdle)
	})
	stats := s.Stats()
	test.That(t, stats.Attempts, test.ShouldEqual, 1)
	test.That(t, stats.Successes, test.ShouldEqual, 1)
	test.That(t, stats.BusyAsserts, test.ShouldEqual, 1)
	test.That(t, stats.BusyDeasserts, test.ShouldEqual, 1)
}

func TestSessionChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	block := signedBlock(t, make([]byte, 16))
	block[len(block)-1] ^= 0xFF
	b.SPIs["main"].SetFill(fillWith(block))

	s, results := bind(t, b, testConfig())
	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r := waitResult(t, results)

	test.That(t, r.OK(), test.ShouldBeFalse)
	test.That(t, r.Payload, test.ShouldBeNil)
	var mismatch *ChecksumMismatchError
	test.That(t, errors.As(r.Err, &mismatch), test.ShouldBeTrue)
	test.That(t, mismatch.Expected, test.ShouldEqual, uint32(0x552D22C8))
	test.That(t, mismatch.Received, test.ShouldNotEqual, mismatch.Expected)

	test.That(t, s.Stats().ChecksumMismatches, test.ShouldEqual, 1)
	test.That(t, b.GPIOPins[busyPin].History(), test.ShouldResemble, []bool{false, true, false})
}

func TestSessionBusFailure(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	b.SPIs["main"].SetFill(func(rx []byte) error {
		return errors.New("controller timeout")
	})

	logger, logs := logging.NewObservedTestLogger(t)
	results := make(chan Result, 1)
	s, err := Bind(ctx, b, "device", testConfig(), logger,
		WithResultHandler(func(ctx context.Context, r Result) { results <- r }))
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, s.Close(ctx), test.ShouldBeNil)
	}()

	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r := waitResult(t, results)

	var busErr *BusError
	test.That(t, errors.As(r.Err, &busErr), test.ShouldBeTrue)
	test.That(t, r.Err.Error(), test.ShouldContainSubstring, "controller timeout")
	test.That(t, r.Payload, test.ShouldBeNil)
	test.That(t, b.GPIOPins[busyPin].History(), test.ShouldResemble, []bool{false, true, false})

	// A failed read never reaches the validator.
	stats := s.Stats()
	test.That(t, stats.BusFailures, test.ShouldEqual, 1)
	test.That(t, stats.ChecksumMismatches, test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("checksum mismatch").Len(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessage("block read failed").Len(), test.ShouldEqual, 1)

	// The session keeps servicing edges after a failure.
	b.SPIs["main"].SetFill(fillWith(signedBlock(t, make([]byte, 16))))
	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r = waitResult(t, results)
	test.That(t, r.OK(), test.ShouldBeTrue)
	test.That(t, r.Seq, test.ShouldEqual, 2)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, s.State(), test.ShouldEqual, StateIdle)
	})
}

func TestSessionBusyPairing(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	good := signedBlock(t, []byte("0123456789abcdef"))
	bad := append([]byte(nil), good...)
	bad[0] = 'x'

	var n int
	b.SPIs["main"].SetFill(func(rx []byte) error {
		n++
		switch n % 3 {
		case 0:
			return errors.New("nack")
		case 1:
			copy(rx, good)
		default:
			copy(rx, bad)
		}
		return nil
	})

	s, results := bind(t, b, testConfig())
	const attempts = 9
	for i := 0; i < attempts; i++ {
		test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
		r := waitResult(t, results)
		test.That(t, r.Seq, test.ShouldEqual, i+1)
		if r.OK() {
			test.That(t, string(r.Payload), test.ShouldEqual, "0123456789abcdef")
		}
	}

	stats := s.Stats()
	test.That(t, stats.Attempts, test.ShouldEqual, attempts)
	test.That(t, stats.Successes, test.ShouldEqual, 3)
	test.That(t, stats.ChecksumMismatches, test.ShouldEqual, 3)
	test.That(t, stats.BusFailures, test.ShouldEqual, 3)
	test.That(t, stats.BusyAsserts, test.ShouldEqual, attempts)
	test.That(t, stats.BusyDeasserts, test.ShouldEqual, attempts)
}

func TestSessionIgnoresFallingEdges(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	s, results := bind(t, b, testConfig())

	test.That(t, b.Digitals["ready"].Tick(ctx, false, 0), test.ShouldBeNil)
	select {
	case r := <-results:
		t.Fatalf("unexpected attempt %d", r.Seq)
	case <-time.After(50 * time.Millisecond):
	}
	test.That(t, s.Stats().Attempts, test.ShouldEqual, 0)
}

// blockingFill returns a fill whose first call waits for release, and a channel that is closed
// once that first call has started.
func blockingFill(block []byte, release <-chan struct{}, concurrent, maxConcurrent *atomic.Int64) (func([]byte) error, <-chan struct{}) {
	entered := make(chan struct{})
	var once sync.Once
	return func(rx []byte) error {
		if c := concurrent.Inc(); c > maxConcurrent.Load() {
			maxConcurrent.Store(c)
		}
		defer concurrent.Dec()
		first := false
		once.Do(func() { first = true })
		if first {
			close(entered)
			<-release
		}
		copy(rx, block)
		return nil
	}, entered
}

func TestSessionEdgePolicies(t *testing.T) {
	for _, tc := range []struct {
		policy        string
		wantAttempts  int64
		wantCoalesced int64
		wantDropped   int64
	}{
		{EdgePolicyCoalesce, 2, 2, 0},
		{EdgePolicyDrop, 1, 2, 1},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			ctx := context.Background()
			b := newFakeBoard(t)
			release := make(chan struct{})
			var concurrent, maxConcurrent atomic.Int64
			fill, entered := blockingFill(signedBlock(t, make([]byte, 16)), release, &concurrent, &maxConcurrent)
			b.SPIs["main"].SetFill(fill)

			conf := testConfig()
			conf.EdgePolicy = tc.policy
			s, results := bind(t, b, conf)

			test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
			<-entered
			test.That(t, s.State(), test.ShouldEqual, StateTransferring)

			// Edges while transferring neither block nor start a second attempt.
			for i := 0; i < 3; i++ {
				test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
			}
			test.That(t, s.Stats().CoalescedEdges, test.ShouldEqual, 2)
			close(release)

			for i := int64(0); i < tc.wantAttempts; i++ {
				r := waitResult(t, results)
				test.That(t, r.OK(), test.ShouldBeTrue)
			}
			testutils.WaitForAssertion(t, func(tb testing.TB) {
				tb.Helper()
				stats := s.Stats()
				test.That(tb, stats.Attempts, test.ShouldEqual, tc.wantAttempts)
				test.That(tb, stats.DroppedEdges, test.ShouldEqual, tc.wantDropped)
				test.That(tb, s.State(), test.ShouldEqual, StateIdle)
			})
			select {
			case r := <-results:
				t.Fatalf("unexpected attempt %d", r.Seq)
			case <-time.After(50 * time.Millisecond):
			}

			stats := s.Stats()
			test.That(t, stats.CoalescedEdges, test.ShouldEqual, tc.wantCoalesced)
			test.That(t, stats.BusyAsserts, test.ShouldEqual, stats.BusyDeasserts)
			test.That(t, maxConcurrent.Load(), test.ShouldEqual, 1)
		})
	}
}

func TestSessionCloseWaitsForTransfer(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	release := make(chan struct{})
	var concurrent, maxConcurrent atomic.Int64
	fill, entered := blockingFill(signedBlock(t, make([]byte, 16)), release, &concurrent, &maxConcurrent)
	b.SPIs["main"].SetFill(fill)

	results := make(chan Result, 4)
	s, err := Bind(ctx, b, "device", testConfig(), logging.NewTestLogger(t),
		WithResultHandler(func(ctx context.Context, r Result) { results <- r }))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	<-entered

	closed := make(chan error, 1)
	go func() {
		closed <- s.Close(ctx)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a transfer was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case err := <-closed:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	// The in-flight attempt finished normally.
	r := waitResult(t, results)
	test.That(t, r.OK(), test.ShouldBeTrue)

	// No more edges are serviced and BUSY is left low.
	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	time.Sleep(20 * time.Millisecond)
	test.That(t, s.Stats().Attempts, test.ShouldEqual, 1)
	high, err := b.GPIOPins[busyPin].Get(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeFalse)

	test.That(t, s.Close(ctx), test.ShouldBeNil)
}

func TestSessionTiming(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	mock := clock.NewMock()
	block := signedBlock(t, make([]byte, 16))
	b.SPIs["main"].SetFill(func(rx []byte) error {
		mock.Add(7 * time.Millisecond)
		copy(rx, block)
		return nil
	})

	s, results := bind(t, b, testConfig(), WithClock(mock))
	start := mock.Now()
	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r := waitResult(t, results)
	test.That(t, r.Started, test.ShouldEqual, start)
	test.That(t, r.Duration, test.ShouldEqual, 7*time.Millisecond)
	test.That(t, s.Stats().LastTransfer, test.ShouldEqual, 7*time.Millisecond)
}

func TestSessionDefaults(t *testing.T) {
	b := newFakeBoard(t)
	conf := testConfig()
	conf.BlockSize = 0

	var gotLen int
	var gotParams []interface{}
	b.SPIs["main"].SetFill(func(rx []byte) error {
		gotLen = len(rx)
		return nil
	})
	spi := &inject.SPI{SPI: b.SPIs["main"]}
	spi.OpenHandleFunc = func() (board.SPIHandle, error) {
		handle, err := b.SPIs["main"].OpenHandle()
		if err != nil {
			return nil, err
		}
		return &inject.SPIHandle{
			SPIHandle: handle,
			RxFunc: func(ctx context.Context, baud uint, chipSelect string, mode, bitsPerWord uint, rx []byte) error {
				gotParams = []interface{}{baud, chipSelect, mode, bitsPerWord}
				return handle.Rx(ctx, baud, chipSelect, mode, bitsPerWord, rx)
			},
		}, nil
	}
	injectBoard := &inject.Board{Board: b}
	injectBoard.SPIByNameFunc = func(name string) (board.SPI, bool) {
		return spi, name == "main"
	}

	s, results := bind(t, injectBoard, conf)
	test.That(t, s.Config().BlockSize, test.ShouldEqual, 0)
	test.That(t, b.Digitals["ready"].Pulse(context.Background()), test.ShouldBeNil)
	r := waitResult(t, results)
	// An all-zero 40964 byte block does not carry a valid trailer.
	test.That(t, r.OK(), test.ShouldBeFalse)
	test.That(t, gotLen, test.ShouldEqual, DefaultBlockSize+TrailerSize)
	test.That(t, gotParams, test.ShouldResemble, []interface{}{uint(1000000), DefaultChipSelect, uint(0), uint(DefaultBitsPerWord)})
}

func TestBindFailures(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	t.Run("invalid config", func(t *testing.T) {
		conf := testConfig()
		conf.SPIBus = ""
		s, err := Bind(ctx, newFakeBoard(t), "device", conf, logger)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"spi_bus" is required`)
	})

	t.Run("unknown bus", func(t *testing.T) {
		conf := testConfig()
		conf.SPIBus = "aux"
		s, err := Bind(ctx, newFakeBoard(t), "device", conf, logger)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "aux")
	})

	t.Run("no interrupt on ready pin", func(t *testing.T) {
		conf := testConfig()
		conf.ReadyPin = "25"
		s, err := Bind(ctx, newFakeBoard(t), "device", conf, logger)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "READY interrupt")
	})

	t.Run("busy pin unavailable", func(t *testing.T) {
		b := newFakeBoard(t)
		injectBoard := &inject.Board{Board: b}
		injectBoard.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
			if name == busyPin {
				return nil, errors.New("line busy")
			}
			return b.GPIOPinByName(name)
		}
		s, err := Bind(ctx, injectBoard, "device", testConfig(), logger)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "BUSY pin")
		test.That(t, injectBoard.GPIOPinByNameCap(), test.ShouldResemble, []interface{}{busyPin})
	})

	t.Run("busy pin cannot be driven", func(t *testing.T) {
		b := newFakeBoard(t)
		injectBoard := &inject.Board{Board: b}
		injectBoard.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
			if name == busyPin {
				return &inject.GPIOPin{SetFunc: func(ctx context.Context, high bool, extra map[string]interface{}) error {
					return errors.New("read-only")
				}}, nil
			}
			return b.GPIOPinByName(name)
		}
		s, err := Bind(ctx, injectBoard, "device", testConfig(), logger)
		test.That(t, s, test.ShouldBeNil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "BUSY low")

		// Nothing was registered on the interrupt.
		test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	})
}

func TestSessionCallbackLifecycle(t *testing.T) {
	b := newFakeBoard(t)
	b.SPIs["main"].SetFill(fillWith(signedBlock(t, make([]byte, 16))))

	var mu sync.Mutex
	var callback board.TickCallback
	removed := false
	interrupt := &inject.DigitalInterrupt{DigitalInterrupt: b.Digitals["ready"]}
	interrupt.AddCallbackFunc = func(cb board.TickCallback) func() {
		mu.Lock()
		defer mu.Unlock()
		callback = cb
		return func() {
			mu.Lock()
			defer mu.Unlock()
			removed = true
		}
	}
	injectBoard := &inject.Board{Board: b}
	injectBoard.DigitalInterruptByNameFunc = func(name string) (board.DigitalInterrupt, error) {
		return interrupt, nil
	}

	s, results := bind(t, injectBoard, testConfig())
	mu.Lock()
	cb := callback
	mu.Unlock()
	test.That(t, cb, test.ShouldNotBeNil)

	cb(board.Tick{Name: "ready", High: true, TimestampNanosec: 42})
	r := waitResult(t, results)
	test.That(t, r.OK(), test.ShouldBeTrue)
	test.That(t, r.Tick.TimestampNanosec, test.ShouldEqual, 42)

	test.That(t, s.Close(context.Background()), test.ShouldBeNil)
	mu.Lock()
	defer mu.Unlock()
	test.That(t, removed, test.ShouldBeTrue)
}

func TestSessionTimingExcludesHandshake(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	mock := clock.NewMock()
	block := signedBlock(t, make([]byte, 16))
	b.SPIs["main"].SetFill(func(rx []byte) error {
		mock.Add(7 * time.Millisecond)
		copy(rx, block)
		return nil
	})

	injectBoard := &inject.Board{Board: b}
	injectBoard.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
		pin, err := b.GPIOPinByName(name)
		if err != nil || name != busyPin {
			return pin, err
		}
		return &inject.GPIOPin{
			GPIOPin: pin,
			SetFunc: func(ctx context.Context, high bool, extra map[string]interface{}) error {
				if high {
					mock.Add(5 * time.Millisecond)
				}
				return pin.Set(ctx, high, extra)
			},
		}, nil
	}

	_, results := bind(t, injectBoard, testConfig(), WithClock(mock))
	start := mock.Now()
	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r := waitResult(t, results)
	test.That(t, r.OK(), test.ShouldBeTrue)
	test.That(t, r.Started, test.ShouldEqual, start.Add(5*time.Millisecond))
	test.That(t, r.Duration, test.ShouldEqual, 7*time.Millisecond)
}

func TestSessionBusyAssertFailure(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	b.SPIs["main"].SetFill(fillWith(signedBlock(t, make([]byte, 16))))

	injectBoard := &inject.Board{Board: b}
	injectBoard.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
		pin, err := b.GPIOPinByName(name)
		if err != nil || name != busyPin {
			return pin, err
		}
		return &inject.GPIOPin{
			GPIOPin: pin,
			SetFunc: func(ctx context.Context, high bool, extra map[string]interface{}) error {
				if high {
					return errors.New("line busy")
				}
				return pin.Set(ctx, high, extra)
			},
		}, nil
	}

	s, results := bind(t, injectBoard, testConfig())
	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	r := waitResult(t, results)
	var busErr *BusError
	test.That(t, errors.As(r.Err, &busErr), test.ShouldBeTrue)
	test.That(t, r.Err.Error(), test.ShouldContainSubstring, "cannot assert BUSY")
	test.That(t, r.Duration, test.ShouldEqual, 0)
	test.That(t, b.SPIs["main"].Transfers(), test.ShouldEqual, 0)
	test.That(t, s.Stats().BusFailures, test.ShouldEqual, 1)
}

func TestSessionHandlerPanic(t *testing.T) {
	ctx := context.Background()
	b := newFakeBoard(t)
	b.SPIs["main"].SetFill(fillWith(signedBlock(t, make([]byte, 16))))

	var calls atomic.Int32
	panicky := WithResultHandler(func(ctx context.Context, r Result) {
		if calls.Inc() == 1 {
			panic("handler failed")
		}
	})
	s, results := bind(t, b, testConfig(), panicky)

	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	first := waitResult(t, results)
	test.That(t, first.OK(), test.ShouldBeTrue)

	test.That(t, b.Digitals["ready"].Pulse(ctx), test.ShouldBeNil)
	second := waitResult(t, results)
	test.That(t, second.Seq, test.ShouldEqual, 2)
	test.That(t, calls.Load(), test.ShouldEqual, 2)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, s.State(), test.ShouldEqual, StateIdle)
	})
}
