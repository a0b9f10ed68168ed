package soapclient

import (
	"io"
	"os"
	"sync"
)

// debugState is the process-wide debug flag together with the default option
// set it was folded into. SetDebug replaces the default set, it never mutates
// a map that a client may already hold. Clients read the state once, in New.
type debugState struct {
	mu       sync.Mutex
	enabled  bool
	out      io.Writer
	defaults Options
}

var process = &debugState{
	out:      os.Stdout,
	defaults: baseOptions(),
}

// SetDebug toggles debug mode for clients constructed afterwards. It also sets
// the trace option of the default option set, so that the last request and
// response can be read back through Client.Trace. Clients that already exist
// keep the options they were built with.
func SetDebug(enabled bool) {
	process.mu.Lock()
	defer process.mu.Unlock()

	process.enabled = enabled
	process.defaults = merge(process.defaults, Options{OptTrace: enabled})
}

// Debug reports whether debug mode is currently enabled.
func Debug() bool {
	process.mu.Lock()
	defer process.mu.Unlock()
	return process.enabled
}

// SetDebugOutput sets the writer debug diagnostics are printed to. It defaults
// to os.Stdout and, like SetDebug, only affects clients constructed afterwards.
func SetDebugOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}

	process.mu.Lock()
	defer process.mu.Unlock()
	process.out = w
}

// DefaultOptions returns a copy of the current default option set.
func DefaultOptions() Options {
	process.mu.Lock()
	defer process.mu.Unlock()
	return process.defaults.copy()
}

// snapshot returns everything a new client needs from the process-wide state.
func (d *debugState) snapshot() (bool, io.Writer, Options) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled, d.out, d.defaults
}
