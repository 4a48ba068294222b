package logging

// Logger is the structured logger used throughout spiblock. Every statement is a message plus
// alternating keys and values, e.g. `logger.Debugw("start spi", "seq", 3)`.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a child logger named "<parent>.<subname>" that shares this logger's
	// appenders. The child starts at the parent's level.
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	SetLevel(level Level)
	GetLevel() Level
	Sync() error
}
