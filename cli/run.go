package cli

import (
	"context"
	"crypto/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/components/board/fake"
	"go.viam.com/spiblock/components/board/genericlinux"
	"go.viam.com/spiblock/config"
	"go.viam.com/spiblock/data"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/protocol"
	"go.viam.com/spiblock/utils"
)

// RunAction reads the config, binds every device and receives blocks until interrupted.
func RunAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration(flagDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	debug := c.Bool(flagDebug)
	logger := logging.NewBlankLogger("spiblock")
	logger.AddAppender(logging.NewWriterAppender(c.App.Writer))
	if !debug {
		logger.SetLevel(logging.INFO)
	}

	cfg, err := config.Read(ctx, c.String(flagConfig), logger)
	if err != nil {
		return err
	}
	if !debug {
		logger.SetLevel(cfg.Log.Level)
	}
	if cfg.Log.File != nil {
		appender := logging.NewFileAppender(*cfg.Log.File)
		logger.AddAppender(appender)
		defer goutils.UncheckedErrorFunc(appender.Close)
	}
	logging.ReplaceGlobal(logger)

	return runDevices(ctx, cfg, logger, c.Duration(flagStatsInterval))
}

func runDevices(ctx context.Context, cfg *config.Config, logger logging.Logger, statsInterval time.Duration) (err error) {
	b, err := newBoard(ctx, cfg, logger.Sublogger("board"))
	if err != nil {
		return errors.Wrap(err, "cannot create board")
	}
	defer func() {
		err = multierr.Combine(err, b.Close(context.Background()))
	}()

	devices, err := bindDevices(ctx, b, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for idx := len(devices) - 1; idx >= 0; idx-- {
			err = multierr.Combine(err, devices[idx].unbind(logger))
		}
	}()
	logger.Infow("running", "board", cfg.Board.Model, "devices", cfg.DeviceNames())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	for _, d := range devices {
		if statsInterval <= 0 {
			break
		}
		g.Go(func() error {
			for goutils.SelectContextOrWait(gctx, statsInterval) {
				d.logStats(logger)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Infow("shutting down")
	for _, d := range devices {
		d.logStats(logger)
	}
	return nil
}

// A device is one bound session and its optional capture sink.
type device struct {
	session *protocol.Session
	sink    *data.CaptureSink
}

func (d *device) logStats(logger logging.Logger) {
	keysAndValues := []interface{}{"device", d.session.Name(), "stats", d.session.Stats()}
	if d.sink != nil {
		keysAndValues = append(keysAndValues, "captured", d.sink.Captured())
	}
	logger.Infow("device stats", keysAndValues...)
}

// unbind closes d, warning periodically while an in-flight transfer holds it up.
func (d *device) unbind(logger logging.Logger) error {
	ctx := context.Background()
	done := utils.SlowLogger(ctx, "waiting for device to unbind", "device", d.session.Name(), logger)
	defer done()
	return d.Close(ctx)
}

func (d *device) Close(ctx context.Context) error {
	err := d.session.Close(ctx)
	if d.sink != nil {
		err = multierr.Combine(err, d.sink.Close())
	}
	return err
}

func bindDevices(ctx context.Context, b board.Board, cfg *config.Config, logger logging.Logger) ([]*device, error) {
	guard := utils.NewGuard()
	defer guard.OnFail()

	devices := make([]*device, 0, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		d := &device{}
		deviceLogger := logger.Sublogger(dc.Name)
		opts := []protocol.Option{protocol.WithResultHandler(logResult(deviceLogger))}
		if cfg.Capture != nil {
			sink, err := data.NewCaptureSink(cfg.Capture, dc.Name, deviceLogger)
			if err != nil {
				return nil, err
			}
			guard.Add(func() { goutils.UncheckedError(sink.Close()) })
			d.sink = sink
			opts = append(opts, protocol.WithResultHandler(sink.Handle))
		}

		session, err := protocol.Bind(ctx, b, dc.Name, dc.ConvertedAttributes, logger, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot bind device %q", dc.Name)
		}
		guard.Add(func() { goutils.UncheckedError(session.Close(context.Background())) })
		d.session = session
		devices = append(devices, d)
	}
	guard.Success()
	return devices, nil
}

// Failures are already logged by the session.
func logResult(logger logging.Logger) protocol.ResultHandler {
	return func(ctx context.Context, result protocol.Result) {
		if result.OK() {
			logger.Debugw("received block", "seq", result.Seq, "bytes", len(result.Payload), "duration", result.Duration)
		}
	}
}

func newBoard(ctx context.Context, cfg *config.Config, logger logging.Logger) (board.Board, error) {
	switch conf := cfg.Board.ConvertedAttributes.(type) {
	case *genericlinux.Config:
		b, err := genericlinux.NewBoard(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case *fake.Config:
		b, err := fake.NewBoard(ctx, conf, logger)
		if err != nil {
			return nil, err
		}
		primeFakeBuses(b, cfg)
		return b, nil
	default:
		return nil, utils.NewUnexpectedTypeError[*genericlinux.Config](conf)
	}
}

// primeFakeBuses makes every fake SPI bus return random payloads signed with the checksum
// convention of the device reading from it. Devices sharing a bus share the last device's
// convention.
func primeFakeBuses(b *fake.Board, cfg *config.Config) {
	for _, dc := range cfg.Devices {
		bus, ok := b.SPIs[dc.ConvertedAttributes.SPIBus]
		if !ok {
			continue
		}
		variant := dc.ConvertedAttributes.Checksum
		bus.SetFill(func(rx []byte) error {
			if len(rx) < protocol.TrailerSize {
				return nil
			}
			if _, err := rand.Read(rx[:len(rx)-protocol.TrailerSize]); err != nil {
				return err
			}
			return variant.Sign(rx)
		})
	}
}
