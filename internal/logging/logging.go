// Package logging configures the diagnostic logger shared by the CLI and the popup controller.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pterm/pterm"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, pterm.LogLevelWarn)
)

var levels = map[string]pterm.LogLevel{
	"trace":    pterm.LogLevelTrace,
	"debug":    pterm.LogLevelDebug,
	"info":     pterm.LogLevelInfo,
	"warn":     pterm.LogLevelWarn,
	"warning":  pterm.LogLevelWarn,
	"error":    pterm.LogLevelError,
	"disabled": pterm.LogLevelDisabled,
	"off":      pterm.LogLevelDisabled,
}

// ParseLevel maps a level name such as "debug" to a pterm log level.
func ParseLevel(name string) (pterm.LogLevel, error) {
	lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return pterm.LogLevelWarn, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

func newLogger(w io.Writer, level pterm.LogLevel) *pterm.Logger {
	return pterm.DefaultLogger.
		WithLevel(level).
		WithWriter(w).
		WithTime(false)
}

// Init replaces the shared logger.
func Init(w io.Writer, level pterm.LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, level)
}

// New returns a standalone logger, mostly useful in tests.
func New(w io.Writer, level pterm.LogLevel) *pterm.Logger {
	return newLogger(w, level)
}

// Get returns the shared logger.
func Get() *pterm.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
