// Package logging provides component loggers backed by logrus.
//
// All component loggers share one *logrus.Logger, so Configure changes the
// level, format and output of every logger handed out before or after it.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/dshills/quill/internal/tracking"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "QUILL_LOG_LEVEL"

// Config configures logging.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" toml:"level" yaml:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" toml:"format" yaml:"format"`

	// File, when set, receives log output instead of stderr.
	File string `mapstructure:"file" toml:"file" yaml:"file"`
}

// DefaultConfig returns text logging at info level.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "text"}
}

var (
	base      = newBase()
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	logFile   io.Closer
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(textFormatter(stderrIsTerminal()))
	level := logrus.InfoLevel
	if env := os.Getenv(EnvLevel); env != "" {
		if parsed, err := logrus.ParseLevel(env); err == nil {
			level = parsed
		}
	}
	l.SetLevel(level)
	return l
}

// NewLogger returns the logger for component. Loggers are cached per
// component and carry a "component" field.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}
	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure applies cfg to every logger and routes scalar diff conflicts
// to the "tracking" logger.
func Configure(cfg Config) error {
	levelStr := cfg.Level
	if env := os.Getenv(EnvLevel); env != "" {
		levelStr = env
	}
	if levelStr == "" {
		levelStr = "info"
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	color := cfg.File == "" && stderrIsTerminal()
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("logging: %w", err)
		}
		out, closer = f, f
	}

	var formatter logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = textFormatter(color)
	case "json":
		formatter = &logrus.JSONFormatter{}
	default:
		if closer != nil {
			closer.Close()
		}
		return fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	base.SetLevel(level)
	base.SetFormatter(formatter)
	base.SetOutput(out)
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = closer

	conflicts := base.WithField("component", "tracking")
	tracking.OnConflict = func(path string, previous, next any) {
		conflicts.WithFields(logrus.Fields{
			"path":     path,
			"previous": previous,
			"next":     next,
		}).Warn("conflicting diff values; keeping the later one")
	}
	return nil
}

func textFormatter(color bool) *logrus.TextFormatter {
	return &logrus.TextFormatter{
		FullTimestamp: true,
		ForceColors:   color,
		DisableColors: !color,
	}
}

func stderrIsTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// SetOutput redirects every logger to w.
func SetOutput(w io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base.SetOutput(w)
}

// Discard returns a logger that drops everything. Tests and optional
// collaborators use it as a default.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
