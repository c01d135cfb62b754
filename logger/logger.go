// Package logger provides the diagnostics interface used by the
// connection and statement layer, a stdlib default implementation,
// and adapters for zerolog, logrus and zap.
package logger

import (
	"context"
	"log"
	"os"
	"time"
)

// LogLevel log level
type LogLevel int

const (
	// Silent silent log level
	Silent LogLevel = iota + 1
	// Error error log level
	Error
	// Warn warn log level
	Warn
	// Info info log level
	Info
)

// Config logger config
type Config struct {
	SlowThreshold        time.Duration
	LogLevel             LogLevel
	ParameterizedQueries bool
	Colorful             bool
}

// Interface logger interface
type Interface interface {
	LogMode(LogLevel) Interface
	Info(ctx context.Context, msg string, data ...interface{})
	Warn(ctx context.Context, msg string, data ...interface{})
	Error(ctx context.Context, msg string, data ...interface{})
	Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error)
}

// Writer log writer interface
type Writer interface {
	Printf(string, ...interface{})
}

var (
	// Discard logger will print any log to io.Discard
	Discard = New(log.New(discardWriter{}, "", log.LstdFlags), Config{LogLevel: Silent})
	// Default logs warnings and errors to stdout
	Default = New(log.New(os.Stdout, "\r\n", log.LstdFlags), Config{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      Warn,
	})
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// New initialize logger
func New(writer Writer, config Config) Interface {
	return &logger{
		Writer: writer,
		Config: config,
	}
}

type logger struct {
	Writer
	Config
}

// LogMode log mode
func (l *logger) LogMode(level LogLevel) Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info print info
func (l *logger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Info {
		l.Printf("[info] "+msg+" %s", append(data, FileWithLineNum())...)
	}
}

// Warn print warn messages
func (l *logger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Warn {
		l.Printf("[warn] "+msg+" %s", append(data, FileWithLineNum())...)
	}
}

// Error print error messages
func (l *logger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= Error {
		l.Printf("[error] "+msg+" %s", append(data, FileWithLineNum())...)
	}
}

// Trace print sql message
func (l *logger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.LogLevel >= Error:
		sql, rows := fc()
		l.Printf("[%.3fms] [rows:%d] %s\n%v %s",
			float64(elapsed.Nanoseconds())/1e6, rows, sql, err, FileWithLineNum())
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= Warn:
		sql, rows := fc()
		l.Printf("[%.3fms] [rows:%d] SLOW SQL >= %v\n%s %s",
			float64(elapsed.Nanoseconds())/1e6, rows, l.SlowThreshold, sql, FileWithLineNum())
	case l.LogLevel == Info:
		sql, rows := fc()
		l.Printf("[%.3fms] [rows:%d] %s %s",
			float64(elapsed.Nanoseconds())/1e6, rows, sql, FileWithLineNum())
	}
}
