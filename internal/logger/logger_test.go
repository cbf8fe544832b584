package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
		want   zerolog.Level
	}{
		{"trace level", "trace", "console", zerolog.TraceLevel},
		{"debug level", "debug", "console", zerolog.DebugLevel},
		{"info level", "info", "console", zerolog.InfoLevel},
		{"warn level", "warn", "console", zerolog.WarnLevel},
		{"error level", "error", "console", zerolog.ErrorLevel},
		{"json format", "info", "json", zerolog.InfoLevel},
		{"uppercase level", "DEBUG", "console", zerolog.DebugLevel},
		{"unknown level falls back to info", "verbose", "console", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Setup(tt.level, tt.format)
			if Log == nil {
				t.Fatal("expected Log to be initialized")
			}
			if got := zerolog.GlobalLevel(); got != tt.want {
				t.Errorf("global level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoggerMethodsExist(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	// These should not panic
	Log.Info("checkpoint loaded", "tensors", 57)
	Log.Debug("segment decoded", "clip", "drive1-a")
	Log.Warn("no checkpoint given, using random init")
	Log.Error("datastore append failed", "offset", 128)
}

func TestLoggerWith(t *testing.T) {
	Setup("debug", "console")

	child := Log.With("translator")
	if child == nil {
		t.Fatal("expected a child logger")
	}
	if child == Log {
		t.Error("With should return a new logger, not the parent")
	}
	// Child carries the component field on every line; parent stays clean.
	child.Info("batch decoded", "steps", 2, "items", 3)
	Log.Info("still the parent")

	grand := child.With("export")
	grand.Debug("record batch sent", "rows", 1024)
}

func TestLoggerWithMultipleFields(t *testing.T) {
	if Log == nil {
		Setup("debug", "console")
	}

	Log.Info(
		"batch collated",
		"videos", 4,
		"steps", 3,
		"loss", 2.41,
		"padded", true,
	)
}

func TestLoggerWithNoFields(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	Log.Info("annotations loaded")
	Log.Debug("scratch pool drained")
	Log.Warn("vocabulary has no sentence words")
	Log.Error("flight sink closed early")
}

func TestLoggerWithOddArgs(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	// Odd trailing key is dropped rather than panicking.
	Log.Info("decode finished", "tokens", 96, "dangling")
}

func TestLoggerWithNonStringKey(t *testing.T) {
	if Log == nil {
		Setup("info", "console")
	}

	// Non-string keys are stringified.
	Log.Info("odd keys", 42, "value", true, "flag")
}

func TestSetupReplacesGlobal(t *testing.T) {
	Setup("info", "console")
	first := Log
	Setup("debug", "json")
	if Log == first {
		t.Error("Setup should install a fresh logger")
	}
}
