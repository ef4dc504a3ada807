package unnarize

import (
	"io"

	"github.com/gtkrshnaaa/unnarize/heap"
	"github.com/gtkrshnaaa/unnarize/vm"
)

// runtimeConfig collects every NewRuntime option before assembly; it
// exists only for the duration of the constructor call.
type runtimeConfig struct {
	gcMode           heap.Mode
	initialThreshold int64
	maxFrames        int
	maxRegs          int
	undefinedMode    vm.UndefinedMode
	stdout           io.Writer
	frontend         Frontend
}

func defaultConfig() *runtimeConfig {
	return &runtimeConfig{
		gcMode:           heap.StopTheWorld,
		initialThreshold: 32 * 1024,
		maxFrames:        1024,
		maxRegs:          65536,
		undefinedMode:    vm.UndefinedSilent,
	}
}

// RuntimeOption configures a Runtime at construction (NewRuntime).
type RuntimeOption func(*runtimeConfig)

// WithGCMode selects stop-the-world (the default) or background-concurrent
// collection — two operating modes of the same collector.
func WithGCMode(m heap.Mode) RuntimeOption {
	return func(c *runtimeConfig) { c.gcMode = m }
}

// WithInitialThreshold sets the nursery's first allocation threshold in
// bytes, before the collector's adaptive resizing takes over.
func WithInitialThreshold(n int64) RuntimeOption {
	return func(c *runtimeConfig) { c.initialThreshold = n }
}

// WithMaxFrames bounds call-frame depth; exceeding it raises a fatal
// StackOverflow error.
func WithMaxFrames(n int) RuntimeOption {
	return func(c *runtimeConfig) { c.maxFrames = n }
}

// WithMaxRegs bounds the VM's flat register array shared by every frame.
func WithMaxRegs(n int) RuntimeOption {
	return func(c *runtimeConfig) { c.maxRegs = n }
}

// WithUndefinedMode configures GETPROP's behavior on a missing struct
// field (vm.UndefinedMode); the default reads a missing field as nil.
func WithUndefinedMode(m vm.UndefinedMode) RuntimeOption {
	return func(c *runtimeConfig) { c.undefinedMode = m }
}

// WithStdout redirects PRINT opcode output; the default is os.Stdout (set
// by vm.New when left unconfigured here).
func WithStdout(w io.Writer) RuntimeOption {
	return func(c *runtimeConfig) { c.stdout = w }
}

// WithFrontend supplies the lexer/parser pipeline RunFile and IMPORT both
// need to turn a canonical path into a parsed *ast.Block. Without one,
// Execute still works on an already-parsed tree.
func WithFrontend(f Frontend) RuntimeOption {
	return func(c *runtimeConfig) { c.frontend = f }
}
