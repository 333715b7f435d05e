// Package logging provides one leveled log sink per role, written to
// <dir>/<role>.log and optionally mirrored to the console.
//
// The four levels used across the code base map onto zerolog levels:
//
//	DEBUG -> zerolog.DebugLevel  (store statements)
//	TRACE -> zerolog.InfoLevel   (successful operations)
//	ALERT -> zerolog.WarnLevel   (anomalies that did not abort the operation)
//	ERROR -> zerolog.ErrorLevel  (rejected operations)
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// App is the sink used by the process itself (startup, transport).
const App = "app"

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[1;31m"
	colorGreen  = "\033[1;32m"
	colorYellow = "\033[1;33m"
	colorMagent = "\033[1;35m"
)

// Options configures a Loggers set.
type Options struct {
	// Dir receives one file per sink. Empty disables file output.
	Dir string
	// Verbose mirrors every sink to Console.
	Verbose bool
	// Console defaults to os.Stdout.
	Console io.Writer
	// Level is the minimum level, either DEBUG/TRACE/ALERT/ERROR or a zerolog level name.
	Level string
}

// Loggers lazily opens and caches the per-role sinks.
type Loggers struct {
	dir     string
	console io.Writer
	level   zerolog.Level

	mu      sync.Mutex
	files   map[string]*os.File
	loggers map[string]zerolog.Logger
}

// New validates opts and prepares the log directory.
func New(opts Options) (*Loggers, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	l := &Loggers{
		dir:     opts.Dir,
		level:   level,
		files:   make(map[string]*os.File),
		loggers: make(map[string]zerolog.Logger),
	}
	if opts.Verbose {
		l.console = opts.Console
		if l.console == nil {
			l.console = os.Stdout
		}
	}
	return l, nil
}

// Nop returns a Loggers set that discards everything.
func Nop() *Loggers {
	return &Loggers{
		level:   zerolog.Disabled,
		files:   make(map[string]*os.File),
		loggers: make(map[string]zerolog.Logger),
	}
}

// ParseLevel accepts the level names used in the log files as well as
// zerolog's own names. Empty means TRACE.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "trace", "info":
		return zerolog.InfoLevel, nil
	case "alert", "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// For returns the sink for name, opening its file on first use.
func (l *Loggers) For(name string) zerolog.Logger {
	l.mu.Lock()
	logger, ok := l.loggers[name]
	l.mu.Unlock()
	if ok {
		return logger
	}

	var file *os.File
	var openErr error
	if l.dir != "" && l.level != zerolog.Disabled {
		file, openErr = os.OpenFile(filepath.Join(l.dir, name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.loggers[name]; ok {
		if file != nil {
			file.Close()
		}
		return existing
	}

	var writers []io.Writer
	if file != nil {
		l.files[name] = file
		writers = append(writers, textWriter(file, true))
	}
	if l.console != nil {
		writers = append(writers, textWriter(l.console, false))
	}
	if openErr != nil && l.console == nil {
		writers = append(writers, textWriter(os.Stderr, false))
	}

	switch len(writers) {
	case 0:
		logger = zerolog.Nop()
	case 1:
		logger = zerolog.New(writers[0]).Level(l.level).With().Timestamp().Str("role", name).Logger()
	default:
		logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(l.level).With().Timestamp().Str("role", name).Logger()
	}
	if openErr != nil {
		logger.Warn().Err(openErr).Msg("log file unavailable, falling back to console")
	}
	l.loggers[name] = logger
	return logger
}

// Close flushes and closes every opened file.
func (l *Loggers) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for name, f := range l.files {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s log: %w", name, err))
		}
		delete(l.files, name)
	}
	l.loggers = make(map[string]zerolog.Logger)
	return errors.Join(errs...)
}

func textWriter(out io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:           out,
		NoColor:       noColor,
		TimeFormat:    time.DateTime,
		FieldsExclude: []string{"role"},
		FormatLevel: func(i any) string {
			return levelTag(fmt.Sprint(i), noColor)
		},
	}
}

func levelTag(level string, noColor bool) string {
	var tag, color string
	switch level {
	case zerolog.DebugLevel.String(), zerolog.TraceLevel.String():
		tag, color = "[DEBUG]", colorYellow
	case zerolog.InfoLevel.String():
		tag, color = "[TRACE]", colorGreen
	case zerolog.WarnLevel.String():
		tag, color = "[ALERT]", colorMagent
	default:
		tag, color = "[ERROR]", colorRed
	}
	if noColor {
		return tag
	}
	return color + tag + colorReset
}
