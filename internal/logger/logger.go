// Package logger configures the process-wide logrus logger.
//
// Output always goes to stderr (stdout is reserved for the MCP protocol when
// the scanner runs as a server). An optional rotating log file can be added
// with Options.File.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers do not need to import logrus directly.
type Fields = logrus.Fields

// Options controls logger construction.
type Options struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means "info".
	Level string

	// File, when set, receives a copy of every entry through a rotating writer.
	File string

	// NoColors disables ANSI colours, used for files and CI.
	NoColors bool
}

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(newFormatter(true))
	return l
}

func newFormatter(noColors bool) logrus.Formatter {
	return &formatter.Formatter{
		NoColors:        noColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	}
}

// Init replaces the global logger according to opts and returns it.
func Init(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to parse log level: %w", err)
		}
		level = parsed
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(newFormatter(opts.NoColors))
	l.SetReportCaller(true)

	writers := []io.Writer{os.Stderr}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))

	mu.Lock()
	log = l
	mu.Unlock()
	return l, nil
}

// L returns the current global logger.
func L() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Discard silences the global logger. Tests call it from their setup.
func Discard() {
	mu.Lock()
	log.SetOutput(io.Discard)
	mu.Unlock()
}

func Debug(fields Fields, msg string) {
	L().WithFields(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	L().WithFields(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	L().WithFields(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	L().WithFields(fields).Error(msg)
}
