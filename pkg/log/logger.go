package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger = zerolog.Nop()
	once   sync.Once
)

type LoggerOption func(*LoggerConfig)

type LoggerConfig struct {
	fileName string
	console  bool
	level    zerolog.Level
}

func WithFileLogger(fileName string) LoggerOption {
	return func(l *LoggerConfig) {
		l.fileName = fileName
	}
}

func WithConsoleLogger() LoggerOption {
	return func(l *LoggerConfig) {
		l.console = true
	}
}

// WithLogLevel accepts zerolog level names ("debug", "info", ...). Unknown names keep info.
func WithLogLevel(level string) LoggerOption {
	return func(l *LoggerConfig) {
		if lvl, err := zerolog.ParseLevel(level); err == nil && lvl != zerolog.NoLevel {
			l.level = lvl
		}
	}
}

func Init(serviceName string, opts ...LoggerOption) {
	once.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		l := &LoggerConfig{level: zerolog.InfoLevel}
		for _, opt := range opts {
			opt(l)
		}

		output := make([]io.Writer, 0, 2)
		if l.console {
			output = append(output, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		}
		if l.fileName != "" {
			output = append(output, &lumberjack.Logger{
				Filename:   l.fileName,
				MaxSize:    5,
				MaxBackups: 10,
				MaxAge:     14,
				Compress:   true,
			})
		}
		if len(output) == 0 {
			output = append(output, os.Stdout)
		}

		logger = zerolog.New(zerolog.MultiLevelWriter(output...)).
			Level(l.level).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	})
}

// GetLogger returns the process logger; before Init it is a no-op logger.
func GetLogger() zerolog.Logger {
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
