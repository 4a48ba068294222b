//go:build !linux

package genericlinux

import (
	"github.com/pkg/errors"

	"go.viam.com/spiblock/components/board"
	"go.viam.com/spiblock/logging"
)

// The GPIO character device only exists on Linux. Boards still build elsewhere so the periph
// driver and the rest of the package can be used, but cdev pins fail when opened.
var errCdevUnsupported = errors.New("the cdev gpio driver is only supported on linux")

func newCdevPin(pc PinConfig, logger logging.Logger) (gpioPin, error) {
	return nil, errCdevUnsupported
}

func newCdevInterrupt(
	cfg board.DigitalInterruptConfig,
	pc PinConfig,
	logger logging.Logger,
) (digitalInterrupt, error) {
	return nil, errCdevUnsupported
}
