// Package unnarize wires the execution core's components — heap, string
// interner, environment, compiler, interpreter, and module loader — into a
// single embeddable Runtime the host program constructs once and calls
// Execute/RunFile/RegisterNative on repeatedly.
package unnarize

import (
	"fmt"
	"path/filepath"

	"github.com/gtkrshnaaa/unnarize/ast"
	"github.com/gtkrshnaaa/unnarize/compiler"
	"github.com/gtkrshnaaa/unnarize/env"
	"github.com/gtkrshnaaa/unnarize/heap"
	"github.com/gtkrshnaaa/unnarize/loader"
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vm"
)

// Frontend turns source text at a canonical path into a parsed tree. The
// lexer and parser themselves live outside this module; Runtime only
// needs something that can hand it a *ast.Block for a path,
// the same contract the module loader uses for imports.
type Frontend = loader.Frontend

// Runtime is the execution core's embeddable entry point: one Heap, one VM,
// one module Loader, and a host Environment holding every
// RegisterNative-installed binding, shared as the non-owning parent of
// every module Environment the Loader creates.
type Runtime struct {
	h        *heap.Heap
	v        *vm.VM
	l        *loader.Loader
	hostEnv  *value.EnvironmentObj
	frontend Frontend
}

// NewRuntime assembles a Runtime from the given options. With no options,
// it runs stop-the-world GC, a 1024-frame / 65536-register stack limit,
// and no Frontend (Execute still works on an already-parsed
// *ast.Block; RunFile requires WithFrontend).
func NewRuntime(opts ...RuntimeOption) *Runtime {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	h := heap.New(heap.WithMode(cfg.gcMode), heap.WithInitialThreshold(cfg.initialThreshold))

	hostEnv := value.NewEnvironment("<host>", nil)
	h.RegisterPermanent(hostEnv)

	vmOpts := []vm.Option{
		vm.WithMaxFrames(cfg.maxFrames),
		vm.WithMaxRegs(cfg.maxRegs),
		vm.WithUndefinedMode(cfg.undefinedMode),
	}
	if cfg.stdout != nil {
		vmOpts = append(vmOpts, vm.WithStdout(cfg.stdout))
	}
	v := vm.New(h, vmOpts...)

	l := loader.New(h, cfg.frontend, hostEnv)
	v.SetLoader(l)

	return &Runtime{h: h, v: v, l: l, hostEnv: hostEnv, frontend: cfg.frontend}
}

// RegisterNative installs a host-language function under name, callable
// from any module as a first-class value.
// The function and its binding are permanent roots: once registered, a
// native is never reclaimed by the GC.
func (r *Runtime) RegisterNative(name string, fn value.NativeFunc, arity int) {
	interned := r.h.Interner().Intern([]byte(name), r.h)
	env.DefineNative(r.h, r.hostEnv, interned, fn, arity)
}

// Heap exposes the Runtime's Heap, for a host that wants direct Stats() or
// Collect() access (e.g. a driver exposing a GC-stress test hook).
func (r *Runtime) Heap() *heap.Heap { return r.h }

// Execute compiles body as a fresh module at modulePath and runs its top
// level to completion, returning the value of its first RETURN (or Nil).
// This is the Runtime's primitive entry point — RunFile is a convenience
// wrapper over a configured Frontend.
func (r *Runtime) Execute(body *ast.Block, modulePath string) (value.Value, error) {
	chunk, err := compiler.New(r.h, modulePath).CompileModule(body)
	if err != nil {
		return value.Nil, err
	}
	modEnv := value.NewEnvironment(modulePath, r.hostEnv)
	r.h.Allocate(modEnv, 128)
	return r.v.RunChunk(chunk, modEnv, modulePath)
}

// RunFile parses, compiles, and executes the file at path as the program's
// entry module, caching it in the Loader exactly like an IMPORT of the
// same canonical path would (so a script that imports its own entry file
// by path sees the same Module rather than re-running it). Requires
// WithFrontend at construction.
func (r *Runtime) RunFile(path string) (value.Value, error) {
	if r.frontend == nil {
		return value.Nil, fmt.Errorf("unnarize: RunFile requires a Frontend (see WithFrontend)")
	}
	// Load resolves its path argument relative to fromModulePath's
	// directory unless path is already absolute; making it absolute here
	// up front means the fromModulePath argument is moot (no directory of
	// it is ever consulted), rather than Join-ing path's own directory
	// into itself.
	abs, err := filepath.Abs(path)
	if err != nil {
		return value.Nil, fmt.Errorf("unnarize: resolving %q: %w", path, err)
	}
	mod, err := r.l.Load(r.v, abs, abs)
	if err != nil {
		return value.Nil, err
	}
	return value.Obj(mod), nil
}

