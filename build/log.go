// Package build provides the engine's logging facade: a registry of
// subsystem-tagged loggers built on top of a single rotating backend, so
// every package logs through build.NewSubLogger and the caller can adjust
// per-subsystem verbosity at startup.
package build

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// Default log level used for subsystems that are never explicitly
// configured.
const defaultLogLevel = btclog.LevelInfo

// RotatingLogWriter wraps a btclog backend fed by a file rotator so every
// subsystem logger shares one on-disk sink.
type RotatingLogWriter struct {
	mu      sync.Mutex
	backend *btclog.Backend
	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates a writer with no file sink configured; call
// InitLogRotator before logging to disk. Until then, logs go to stdout.
func NewRotatingLogWriter() *RotatingLogWriter {
	w := &RotatingLogWriter{}
	w.backend = btclog.NewBackend(os.Stdout)
	return w
}

// InitLogRotator initializes the log rotator to write logs to logFile and
// create roll files in the same directory. It should be called as early as
// possible during startup.
func (w *RotatingLogWriter) InitLogRotator(logFile string, maxRolls int) error {
	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("build: failed to create log rotator: %w", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rotator = r
	w.backend = btclog.NewBackend(io.MultiWriter(os.Stdout, r))
	return nil
}

// GenSubLogger creates a new subsystem logger from the current backend.
func (w *RotatingLogWriter) GenSubLogger(tag string) btclog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()
	l := w.backend.Logger(tag)
	l.SetLevel(defaultLogLevel)
	return l
}

// Close shuts down the underlying rotator, if any.
func (w *RotatingLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rotator == nil {
		return nil
	}
	return w.rotator.Close()
}

// subLoggers tracks every logger created via NewSubLogger so SetLogLevels
// can retroactively change verbosity.
var (
	regMu      sync.Mutex
	subLoggers = make(map[string]btclog.Logger)
)

// NewSubLogger registers (or returns the existing) logger for tag. If gen is
// nil, a disabled logger is registered and returned; once a tag is
// registered, later calls return that same logger and ignore gen.
func NewSubLogger(tag string, gen func(string) btclog.Logger) btclog.Logger {
	regMu.Lock()
	defer regMu.Unlock()

	if l, ok := subLoggers[tag]; ok {
		return l
	}

	var l btclog.Logger
	if gen != nil {
		l = gen(tag)
	} else {
		l = btclog.Disabled
	}
	subLoggers[tag] = l
	return l
}

// SetLogLevels parses a comma-separated "subsystem=level" list (or a bare
// level applied to every subsystem) and applies it to the registered
// loggers.
func SetLogLevels(spec string) error {
	regMu.Lock()
	defer regMu.Unlock()

	if spec == "" {
		return nil
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 1 {
			lvl, ok := btclog.LevelFromString(kv[0])
			if !ok {
				return fmt.Errorf("build: unknown log level %q", kv[0])
			}
			for _, l := range subLoggers {
				l.SetLevel(lvl)
			}
			continue
		}
		tag, lvlStr := kv[0], kv[1]
		lvl, ok := btclog.LevelFromString(lvlStr)
		if !ok {
			return fmt.Errorf("build: unknown log level %q for subsystem %q", lvlStr, tag)
		}
		l, ok := subLoggers[tag]
		if !ok {
			return fmt.Errorf("build: unknown subsystem %q", tag)
		}
		l.SetLevel(lvl)
	}
	return nil
}
