package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mp-manager/mp-manager/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Log level env: LOG_LEVEL=debug|info|warn|error (default: info).
const envLogLevel = "LOG_LEVEL"

const timeLayout = "[2006-01-02 15:04:05]"

type ShutdownFunc func() error

// NewLogger creates a structured logger backed by zap and wrapped with slog's
// interface. Every record goes to the console sink and, when a file is configured,
// is appended to the log file as well, so that a line such as
//
//	[2024-01-02 15:04:05] Access to https://www.uniprot.org/mapping/
//
// appears in both places.
func NewLogger(cfg *config.LoggingConfig) (*slog.Logger, ShutdownFunc, error) {
	if cfg == nil {
		cfg = &config.LoggingConfig{}
	}
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if l := parseLogLevel(os.Getenv(envLogLevel)); l != nil {
		level.SetLevel(*l)
	}

	encoder := newEncoder(cfg.Format)

	console := zapcore.Lock(os.Stderr)
	if cfg.Console == "stdout" {
		console = zapcore.Lock(os.Stdout)
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, console, level)}

	var file *os.File
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("Cannot open log file %q: %w", cfg.File, err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(encoder.Clone(), zapcore.AddSync(f), level))
	}

	core := zapcore.NewTee(cores...)
	return slog.New(zapslog.NewHandler(core)), newShutdownFunc(core, file), nil
}

// newEncoder keeps the console layout close to "[time] message", the json
// format is the zap production encoder with ISO8601 timestamps.
func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	})
}

func FallbackLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func newShutdownFunc(core zapcore.Core, file *os.File) ShutdownFunc {
	return func() error {
		// stderr and stdout may refuse fsync, that is not worth reporting
		_ = core.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
}

func parseLogLevel(s string) *zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		l := zapcore.DebugLevel
		return &l
	case "info", "":
		return nil
	case "warn":
		l := zapcore.WarnLevel
		return &l
	case "error":
		l := zapcore.ErrorLevel
		return &l
	default:
		return nil
	}
}
