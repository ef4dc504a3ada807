// Package vm implements the register-window bytecode interpreter: the
// fetch-decode-execute dispatch loop, the call protocol, and the
// write-barrier invocations every container-mutating opcode needs.
package vm

import (
	"io"
	"os"

	"github.com/gtkrshnaaa/unnarize/heap"
	"github.com/gtkrshnaaa/unnarize/value"
)

const (
	defaultMaxFrames = 1024
	defaultMaxRegs   = 65536
)

// UndefinedMode selects how GETPROP on a StructInstance field that doesn't
// exist behaves. UndefinedSilent (read-returns-nil) is the default; the
// stricter modes are opt-in and never change the default when left
// unconfigured.
type UndefinedMode int

const (
	// UndefinedSilent returns Nil for a missing struct field: a
	// mismatched read is not fatal.
	UndefinedSilent UndefinedMode = iota
	// UndefinedStrict raises a NameError instead of returning Nil.
	UndefinedStrict
	// UndefinedDebug returns a string naming the missing field instead of
	// Nil, useful for diagnosing a typo'd field access during development.
	UndefinedDebug
)

// ModuleLoader resolves an IMPORT by path relative to the importing
// module and reports its own cache as additional GC roots. vm never
// imports the loader package directly — the loader package imports vm
// to drive execution of a freshly compiled module chunk, so the
// dependency would otherwise cycle; this interface is the inversion
// point, satisfied by *loader.Loader at wiring time.
type ModuleLoader interface {
	Load(vm *VM, fromModulePath, path string) (*value.ModuleObj, error)
	EnumerateRoots(visit func(value.Value))
}

type callFrame struct {
	regBase    int
	chunk      *value.Chunk
	ip         int
	resultReg  byte
	moduleEnv  *value.EnvironmentObj
	modulePath string
	fn         *value.FunctionObj
}

// VM is the interpreter: one flat register array shared by every frame,
// with regBase marking the active frame's window.
type VM struct {
	h    *heap.Heap
	regs []value.Value
	used int // high-water mark across every active frame, for root enumeration

	frames []callFrame

	curChunk      *value.Chunk
	ip            int
	regBase       int
	curModuleEnv  *value.EnvironmentObj
	curModulePath string
	curFn         *value.FunctionObj

	loader ModuleLoader
	stdout io.Writer

	maxFrames int
	maxRegs   int
	undefined UndefinedMode
}

// Option configures a VM at construction.
type Option func(*VM)

func WithStdout(w io.Writer) Option { return func(vm *VM) { vm.stdout = w } }
func WithMaxFrames(n int) Option    { return func(vm *VM) { vm.maxFrames = n } }
func WithMaxRegs(n int) Option      { return func(vm *VM) { vm.maxRegs = n } }

// WithUndefinedMode configures GETPROP's behavior on a missing struct
// field; the zero value (UndefinedSilent) reads a missing field as nil.
func WithUndefinedMode(m UndefinedMode) Option { return func(vm *VM) { vm.undefined = m } }

func New(h *heap.Heap, opts ...Option) *VM {
	vm := &VM{
		h:         h,
		stdout:    os.Stdout,
		maxFrames: defaultMaxFrames,
		maxRegs:   defaultMaxRegs,
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.regs = make([]value.Value, vm.maxRegs)
	h.SetRootSource(vm)
	return vm
}

// SetLoader wires the module loader used by IMPORT. Must be called
// before any chunk containing an IMPORT instruction runs.
func (vm *VM) SetLoader(l ModuleLoader) { vm.loader = l }

// EnumerateRoots satisfies heap.RootSource: every live register across
// every active frame, the function object and module environment of
// each frame (including the currently executing one), and whatever the
// module loader's own cache reports as roots.
func (vm *VM) EnumerateRoots(visit func(value.Value)) {
	for i := 0; i < vm.used; i++ {
		visit(vm.regs[i])
	}
	if vm.curFn != nil {
		visit(value.Obj(vm.curFn))
	}
	if vm.curModuleEnv != nil {
		visit(value.Obj(vm.curModuleEnv))
	}
	for _, f := range vm.frames {
		if f.fn != nil {
			visit(value.Obj(f.fn))
		}
		if f.moduleEnv != nil {
			visit(value.Obj(f.moduleEnv))
		}
	}
	if vm.loader != nil {
		vm.loader.EnumerateRoots(visit)
	}
}

// RunChunk executes chunk as a fresh top-level frame (no caller to
// return to) in env, and returns the value of its first RETURN, or nil
// on RETURNNIL / falling off the end.
func (vm *VM) RunChunk(chunk *value.Chunk, env *value.EnvironmentObj, modulePath string) (value.Value, error) {
	vm.curChunk = chunk
	vm.ip = 0
	vm.regBase = 0
	vm.curModuleEnv = env
	vm.curModulePath = modulePath
	vm.curFn = nil
	vm.bumpUsed(chunk.MaxRegs)
	vm.frames = vm.frames[:0]
	return vm.dispatch()
}

func (vm *VM) bumpUsed(topRelative int) {
	if n := vm.regBase + topRelative; n > vm.used {
		vm.used = n
	}
}

func (vm *VM) reg(rel byte) value.Value        { return vm.regs[vm.regBase+int(rel)] }
func (vm *VM) setReg(rel byte, v value.Value)   { vm.regs[vm.regBase+int(rel)] = v }
