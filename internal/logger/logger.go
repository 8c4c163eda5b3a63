package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	// VerboseEnabled controls whether Verbose messages are displayed
	VerboseEnabled bool
	// DebugEnabled controls whether Debug messages are displayed (also enables Verbose)
	DebugEnabled bool
	// Enabled is the engine's logging toggle. When false nothing is written at all.
	Enabled = true

	mu     sync.Mutex
	output io.Writer = os.Stderr

	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
	okColor    = color.New(color.FgGreen)
)

// Init initializes the logger based on flags and environment variables
func Init(verbose, debug bool) {
	VerboseEnabled = verbose || debug
	DebugEnabled = debug

	// Support BUILDHOOKS_DEBUG environment variable
	if os.Getenv("BUILDHOOKS_DEBUG") == "1" {
		DebugEnabled = true
		VerboseEnabled = true
	}
}

// SetOutput redirects all log output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	output = w
}

// SetEnabled toggles logging as a whole
func SetEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	Enabled = enabled
}

func write(c *color.Color, prefix, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if !Enabled {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if c != nil {
		prefix = c.Sprint(prefix)
	}
	fmt.Fprint(output, prefix+msg+"\n")
}

// Verbose prints verbose messages (shown when --verbose or --debug is enabled)
func Verbose(format string, args ...interface{}) {
	if VerboseEnabled {
		write(nil, "", format, args...)
	}
}

// Debug prints debug messages (shown only when --debug is enabled)
func Debug(format string, args ...interface{}) {
	if DebugEnabled {
		write(nil, "", format, args...)
	}
}

// Info prints informational messages
func Info(format string, args ...interface{}) {
	write(nil, "", format, args...)
}

// Success prints success messages with a checkmark
func Success(format string, args ...interface{}) {
	write(okColor, "✓ ", format, args...)
}

// Warn prints warnings
func Warn(format string, args ...interface{}) {
	write(warnColor, "Warning: ", format, args...)
}

// Error prints error messages
func Error(format string, args ...interface{}) {
	write(errorColor, "Error: ", format, args...)
}

// Std adapts the package-level functions to the Logger interface expected by
// the hook engine.
type Std struct{}

func (Std) Infof(format string, args ...interface{})  { Info(format, args...) }
func (Std) Warnf(format string, args ...interface{})  { Warn(format, args...) }
func (Std) Errorf(format string, args ...interface{}) { Error(format, args...) }
func (Std) Debugf(format string, args ...interface{}) { Debug(format, args...) }
