package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// testAppender logs through tb.Log so output lands under the test that produced it, even when
// tests run in parallel. Times are in local time.
type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that writes console formatted lines with tb.Log.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	// Leave this frame out of the location tb.Log reports.
	tapp.tb.Helper()
	line, err := formatEntry(entry, fields)
	tapp.tb.Log(line)
	return err
}

func (tapp *testAppender) Sync() error {
	return nil
}
