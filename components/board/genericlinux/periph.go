// This file is for pins driven through periph.io's GPIO registry, which works on hosts whose
// kernel lacks the GPIO character device as well as those with it.
package genericlinux

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/logging"
	"go.viam.com/spiblock/utils"
)

// How long a periph interrupt waits for an edge before checking whether it should stop.
const edgePollInterval = 100 * time.Millisecond

func lookupPeriphPin(pc PinConfig) (gpio.PinIO, error) {
	name := pc.Global
	if name == "" {
		name = pc.Name
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no GPIO pin named %q registered with periph.io", name)
	}
	return pin, nil
}

type periphPin struct {
	pin gpio.PinIO
}

func newPeriphPin(pc PinConfig) (gpioPin, error) {
	pin, err := lookupPeriphPin(pc)
	if err != nil {
		return nil, err
	}
	return &periphPin{pin: pin}, nil
}

func (p *periphPin) Set(ctx context.Context, isHigh bool, extra map[string]interface{}) error {
	return p.pin.Out(gpio.Level(isHigh))
}

func (p *periphPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	return p.pin.Read() == gpio.High, nil
}

func (p *periphPin) Close() error {
	return nil
}

type periphInterrupt struct {
	*board.BasicDigitalInterrupt
	pin     gpio.PinIO
	workers utils.StoppableWorkers
	logger  logging.Logger
}

func newPeriphInterrupt(
	cfg board.DigitalInterruptConfig,
	pc PinConfig,
	logger logging.Logger,
) (digitalInterrupt, error) {
	pin, err := lookupPeriphPin(pc)
	if err != nil {
		return nil, err
	}
	if err := pin.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		return nil, errors.Wrapf(err, "cannot watch %s for rising edges", pin.Name())
	}

	di := &periphInterrupt{
		BasicDigitalInterrupt: board.NewBasicDigitalInterrupt(cfg),
		pin:                   pin,
		logger:                logger,
	}
	di.workers = utils.NewStoppableWorkers(di.monitor)
	return di, nil
}

func (di *periphInterrupt) monitor(ctx context.Context) {
	for ctx.Err() == nil {
		if !di.pin.WaitForEdge(edgePollInterval) {
			continue
		}
		if err := di.Tick(ctx, true, uint64(time.Now().UnixNano())); err != nil {
			return
		}
	}
}

func (di *periphInterrupt) level() (bool, error) {
	return di.pin.Read() == gpio.High, nil
}

func (di *periphInterrupt) Close() error {
	di.workers.Stop()
	if err := di.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		di.logger.Debugw("failed to disable edge detection", "pin", di.pin.Name(), "error", err)
		return err
	}
	return nil
}
