package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide logger. Commands replace it via Setup; the
// default below keeps it usable from package init onward.
var Log = &Logger{z: sink("console")}

// Logger wraps a zerolog.Logger behind variadic key-value methods so
// call sites stay flat: Log.Info("batch collated", "videos", n).
type Logger struct {
	z zerolog.Logger
}

var levels = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

// Setup replaces the global logger. Unknown level names fall back to
// info; any format other than "json" selects the console writer.
func Setup(level, format string) {
	lvl, ok := levels[strings.ToLower(level)]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	Log = &Logger{z: sink(format)}
}

func sink(format string) zerolog.Logger {
	if strings.EqualFold(format, "json") {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(cw).With().Timestamp().Logger()
}

// With returns a child logger carrying a fixed component field, used
// by long-lived objects (translator, datastore, server) so their
// lines are attributable without repeating the key at every call.
func (l *Logger) With(component string) *Logger {
	return &Logger{z: l.z.With().Str("component", component).Logger()}
}

func (l *Logger) Info(msg string, args ...interface{})  { emit(l.z.Info(), msg, args) }
func (l *Logger) Debug(msg string, args ...interface{}) { emit(l.z.Debug(), msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { emit(l.z.Warn(), msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { emit(l.z.Error(), msg, args) }

// emit attaches the key-value pairs and fires the event. A trailing
// key without a value is dropped; non-string keys are stringified.
func emit(e *zerolog.Event, msg string, args []interface{}) {
	for len(args) >= 2 {
		key, ok := args[0].(string)
		if !ok {
			key = fmt.Sprint(args[0])
		}
		e = e.Interface(key, args[1])
		args = args[2:]
	}
	e.Msg(msg)
}
