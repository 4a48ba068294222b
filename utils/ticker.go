package utils

import (
	"context"
	"time"

	"go.viam.com/spiblock/logging"
)

// SlowLogger starts a goroutine that logs a warning every few seconds until the returned function
// is called or ctx is done. Use it around operations that wait on hardware, like unbinding a
// device with a transfer in flight.
func SlowLogger(ctx context.Context, msg, fieldName, fieldVal string, logger logging.Logger) func() {
	return slowLogger(ctx, msg, fieldName, fieldVal, logger, 2*time.Second)
}

func slowLogger(ctx context.Context, msg, fieldName, fieldVal string, logger logging.Logger, first time.Duration) func() {
	slowTicker := time.NewTicker(first)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	go func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := time.Since(startTime).Round(time.Millisecond).String()
				logger.Warnw(msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if firstTick {
					slowTicker.Reset(first + first/2)
					firstTick = false
				} else {
					slowTicker.Reset(first + first + first/2)
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() { slowTicker.Stop(); cancel() }
}
