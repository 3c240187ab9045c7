package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	level    = new(slog.LevelVar)
	handler  slog.Handler
	logger   *slog.Logger
	initOnce sync.Once
)

// initLogger installs a text handler on stderr unless Configure ran first.
func initLogger() {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger == nil {
			install(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		}
	})
}

func install(h slog.Handler) {
	handler = h
	logger = slog.New(h)
}

// Configure replaces the process-wide handler. format is "text" or "json";
// anything else falls back to text. A nil writer means stderr.
func Configure(lvl, format string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	SetLevel(ParseLevel(lvl))

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	initOnce.Do(func() {})
	mu.Lock()
	install(h)
	mu.Unlock()
}

// ParseLevel maps a config string onto a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.Set(slog.LevelDebug)
	case LevelError:
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}

// Logger returns the shared *slog.Logger for packages that want the slog API
// directly.
func Logger() *slog.Logger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Handler returns the handler behind Logger, e.g. for the GORM adapter.
func Handler() slog.Handler {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return handler
}

func Debug(msg string, kv ...any) {
	Logger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	Logger().Info(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	Logger().Error(msg, extended...)
}
