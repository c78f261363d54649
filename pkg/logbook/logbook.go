// Package logbook maintains the per-endpoint append-only log files under
// the configured log directory, one file per endpoint, every line prefixed
// with a UK-formatted timestamp.
package logbook

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const ukLayout = "02/01/2006 15:04:05"

var (
	mu      sync.Mutex
	dir     = "logs"
	loggers = map[string]*Logger{}
)

// Logger writes one endpoint's log file.
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
}

// SetDir points the logbook at its directory and creates it. Call before
// the first Endpoint; loggers opened earlier keep their existing sinks.
func SetDir(d string) error {
	mu.Lock()
	defer mu.Unlock()
	if d == "" {
		d = "logs"
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return fmt.Errorf("logbook: create %s: %w", d, err)
	}
	dir = d
	return nil
}

// Endpoint returns the logger for one endpoint, opening <dir>/<name>.log on
// first use. If the file cannot be opened the logger falls back to stderr;
// logging never takes a request down.
func Endpoint(name string) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[name]; ok {
		return l
	}
	l := &Logger{name: name, sugar: open(name)}
	loggers[name] = l
	return l
}

func open(name string) *zap.SugaredLogger {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format(ukLayout))
		},
	}

	sink := zapcore.AddSync(os.Stderr)
	file, err := os.OpenFile(filepath.Join(dir, name+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err == nil {
		sink = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), sink, zapcore.InfoLevel)
	return zap.New(core).Sugar()
}

// Event appends one structured line for a completed action.
func (l *Logger) Event(action string, keysAndValues ...interface{}) {
	l.sugar.Infow(action, keysAndValues...)
}

// Failure appends an error line for a failed action.
func (l *Logger) Failure(action string, err error, keysAndValues ...interface{}) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	kv := append([]interface{}{"error", detail}, keysAndValues...)
	l.sugar.Errorw(action, kv...)
}

// Sync flushes the logger's buffered output.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

// SyncAll flushes every open endpoint log. Called on shutdown.
func SyncAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.sugar.Sync()
	}
}
