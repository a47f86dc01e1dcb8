package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"hfllm/config"

	"github.com/sirupsen/logrus"
)

// InitLogger configures the standard logrus logger from cfg and returns a
// function that releases any log file it opened.
func InitLogger(cfg config.LoggingConfig) func() {
	logrus.SetLevel(parseLevel(cfg.Level))
	logrus.SetFormatter(newFormatter(cfg.Format))

	out, closeOut, err := openOutput(cfg.Output)
	if err != nil {
		logrus.WithError(err).WithField("path", cfg.Output).Warn("Cannot open log file, logging to stderr")
	}
	logrus.SetOutput(out)

	logrus.WithFields(logrus.Fields{
		"level":  logrus.GetLevel(),
		"output": cfg.Output,
	}).Debug("Logger ready")
	return closeOut
}

// parseLevel maps a level name onto logrus. An empty name keeps chat output
// quiet; an unknown one falls back to info.
func parseLevel(name string) logrus.Level {
	if strings.TrimSpace(name) == "" {
		return logrus.WarnLevel
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logrus.WithField("level", name).Warn("Unknown log level, using info")
		return logrus.InfoLevel
	}
	return level
}

func newFormatter(format string) logrus.Formatter {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

// openOutput resolves stderr, stdout, none or a file path. On error the
// returned writer is stderr.
func openOutput(name string) (io.Writer, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "stderr":
		return os.Stderr, noop, nil
	case "stdout":
		return os.Stdout, noop, nil
	case "none":
		return io.Discard, noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return os.Stderr, noop, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr, noop, err
	}
	return file, func() { file.Close() }, nil
}
