package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"segcut/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunField is the structured field carrying a pipeline run ID.
const RunField = "run"

// Configure builds the segcut logger: the configured formatter and level,
// output rotated under the state dir and optionally tee'd to stderr so that
// stdout stays free for reports.
func Configure(cfg *config.Config) (*logrus.Logger, error) {
	formatter, err := formatterFor(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	level := logrus.InfoLevel
	if name := strings.TrimSpace(cfg.Logging.Level); name != "" {
		if level, err = logrus.ParseLevel(strings.ToLower(name)); err != nil {
			return nil, fmt.Errorf("%w: logging.level: %v", config.ErrInvalid, err)
		}
	}
	if err := config.MustStatePaths(cfg); err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(formatter)
	logger.SetLevel(level)
	rotator := &lumberjack.Logger{
		Filename:   cfg.Paths.LogPath,
		MaxSize:    20, // megabytes
		MaxBackups: 3,
		MaxAge:     30,
	}
	var out io.Writer = rotator
	if cfg.Logging.Stdout {
		out = io.MultiWriter(os.Stderr, rotator)
	}
	logger.SetOutput(out)
	return logger, nil
}

func formatterFor(name string) (logrus.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text":
		return &logrus.TextFormatter{FullTimestamp: true}, nil
	case "json":
		return &logrus.JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("%w: logging.format %q (want text or json)", config.ErrInvalid, name)
	}
}

// ForRun scopes logger to one run.
func ForRun(logger logrus.FieldLogger, runID string) *logrus.Entry {
	return logger.WithField(RunField, runID)
}

// NewTestLogger returns a logger that discards everything.
func NewTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.DebugLevel)
	return logger
}
