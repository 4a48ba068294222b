//go:build linux

// This file is for digital interrupts on the GPIO character device.
package genericlinux

import (
	"context"

	"github.com/mkch/gpio"
	"go.viam.com/utils"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/logging"
	spiutils "go.viam.com/spiblock/utils"
)

type cdevInterrupt struct {
	*board.BasicDigitalInterrupt
	line    *gpio.LineWithEvent
	workers spiutils.StoppableWorkers
	logger  logging.Logger
}

func newCdevInterrupt(
	cfg board.DigitalInterruptConfig,
	pc PinConfig,
	logger logging.Logger,
) (digitalInterrupt, error) {
	chip, err := gpio.OpenChip(chipPath(pc.Chip))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	// Only rising edges are requested. The line's event channel holds just the newest event, so
	// asking for both edges would let a falling edge overwrite a rising one we have not read yet.
	line, err := chip.OpenLineWithEvents(
		uint32(pc.Line), gpio.Input, gpio.RisingEdge, "spiblock-interrupt")
	if err != nil {
		return nil, err
	}

	di := &cdevInterrupt{
		BasicDigitalInterrupt: board.NewBasicDigitalInterrupt(cfg),
		line:                  line,
		logger:                logger,
	}
	di.workers = spiutils.NewStoppableWorkers(di.monitor)
	return di, nil
}

func (di *cdevInterrupt) monitor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-di.line.Events():
			if !ok {
				di.logger.Debugw("interrupt line closed", "interrupt", di.Name())
				return
			}
			if event == nil {
				continue
			}
			utils.UncheckedError(di.Tick(ctx, event.RisingEdge, uint64(event.Time.UnixNano())))
		}
	}
}

func (di *cdevInterrupt) level() (bool, error) {
	value, err := di.line.Value()
	if err != nil {
		return false, err
	}
	return value != 0, nil
}

func (di *cdevInterrupt) Close() error {
	// Stop the monitor before closing the line so no tick is delivered after Close returns.
	di.workers.Stop()
	return di.line.Close()
}
