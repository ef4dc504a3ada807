// Package loader resolves and caches module imports: parsing and
// compiling a module's source once per canonical path, prefetching a
// module's distinct top-level imports concurrently, and executing each
// module's top level exactly once on the interpreter's single mutator
// thread.
package loader

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"

	"github.com/gtkrshnaaa/unnarize/ast"
	"github.com/gtkrshnaaa/unnarize/compiler"
	"github.com/gtkrshnaaa/unnarize/heap"
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vm"
)

// Frontend turns source text at a canonical path into a parsed tree. The
// lexer and parser that implement it live outside this execution core;
// Loader only needs something that can hand it a *ast.Block for a path.
type Frontend interface {
	Parse(canonicalPath string) (*ast.Block, error)
}

// Loader implements vm.ModuleLoader: canonical-path resolution, a
// compiled-chunk cache shared across concurrent prefetch, and an
// executed-module cache so importing the same file twice anywhere in a
// program returns the same Module and never re-runs its top level.
type Loader struct {
	h        *heap.Heap
	frontend Frontend
	hostEnv  *value.EnvironmentObj

	mu       sync.Mutex
	compiled map[string]*value.Chunk
	modules  map[string]value.Value
}

// New returns a Loader that parents every module's Environment on hostEnv
// (may be nil), the Runtime's shared table of registered native functions —
// this is how a name registered via Runtime.RegisterNative resolves from
// inside an imported module without becoming part of that module's own
// bindings. hostEnv is a non-owning parent, never mutated by module code.
func New(h *heap.Heap, frontend Frontend, hostEnv *value.EnvironmentObj) *Loader {
	return &Loader{
		h:        h,
		frontend: frontend,
		hostEnv:  hostEnv,
		compiled: map[string]*value.Chunk{},
		modules:  map[string]value.Value{},
	}
}

// resolve turns an import path written relative to fromModulePath into a
// canonical absolute path. Symlinks are resolved when the path exists on
// disk; a Frontend backed by something other than a real filesystem (as
// in tests) simply keeps the absolute form.
func resolve(fromModulePath, path string) (string, error) {
	joined := path
	if !filepath.IsAbs(path) {
		joined = filepath.Join(filepath.Dir(fromModulePath), path)
	}
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

func moduleName(canonicalPath string) string {
	base := filepath.Base(canonicalPath)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	return base
}

// Load resolves path relative to fromModulePath, returning the cached
// Module if it was already executed, or compiling and running it
// (prefetching its own distinct imports concurrently first) otherwise.
// Satisfies vm.ModuleLoader.
func (l *Loader) Load(vmi *vm.VM, fromModulePath, path string) (*value.ModuleObj, error) {
	canon, err := resolve(fromModulePath, path)
	if err != nil {
		return nil, fmt.Errorf("resolving import %q: %w", path, err)
	}

	if mod, ok := l.cachedModule(canon); ok {
		return mod, nil
	}

	chunk, err := l.compileCached(canon)
	if err != nil {
		return nil, err
	}

	if err := l.prefetchImports(canon); err != nil {
		return nil, err
	}

	return l.runAndCache(vmi, canon, chunk)
}

func (l *Loader) cachedModule(canon string) (*value.ModuleObj, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.modules[canon]
	if !ok {
		return nil, false
	}
	return v.AsObject().(*value.ModuleObj), true
}

// compileCached parses and compiles canon's source if no other goroutine
// has done so yet (a prefetch racing a direct Load for the same path),
// caching the resulting chunk either way.
func (l *Loader) compileCached(canon string) (*value.Chunk, error) {
	l.mu.Lock()
	if c, ok := l.compiled[canon]; ok {
		l.mu.Unlock()
		return c, nil
	}
	l.mu.Unlock()

	block, err := l.frontend.Parse(canon)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", canon, err)
	}
	chunk, err := compiler.New(l.h, canon).CompileModule(block)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	if existing, ok := l.compiled[canon]; ok {
		l.mu.Unlock()
		return existing, nil
	}
	l.compiled[canon] = chunk
	l.mu.Unlock()
	return chunk, nil
}

// topLevelImports returns the distinct import paths a module's top level
// names directly; imports nested inside a function body or control-flow
// statement are resolved lazily the first time that code runs, not
// prefetched here.
func topLevelImports(block *ast.Block) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range block.Stmts {
		imp, ok := s.(*ast.Import)
		if !ok || seen[imp.Path] {
			continue
		}
		seen[imp.Path] = true
		out = append(out, imp.Path)
	}
	return out
}

// prefetchImports compiles (but never executes) canon's distinct
// top-level imports concurrently via an errgroup, so a module with
// several sibling dependencies doesn't pay their lex+parse+compile cost
// serially; execution itself always happens later, one module at a time,
// on the single mutator thread.
func (l *Loader) prefetchImports(canon string) error {
	l.mu.Lock()
	chunk := l.compiled[canon]
	l.mu.Unlock()
	if chunk == nil {
		return nil
	}

	block, err := l.frontend.Parse(canon)
	if err != nil {
		// Already parsed successfully once in compileCached; a failure
		// here would be a non-deterministic frontend, not a real error
		// path worth propagating twice.
		return nil
	}
	imports := topLevelImports(block)
	if len(imports) < 2 {
		return nil
	}

	var g errgroup.Group
	for _, p := range imports {
		p := p
		g.Go(func() error {
			target, err := resolve(canon, p)
			if err != nil {
				return fmt.Errorf("resolving import %q: %w", p, err)
			}
			if l.alreadyCompiledOrModule(target) {
				return nil
			}
			_, err = l.compileCached(target)
			return err
		})
	}
	return g.Wait()
}

func (l *Loader) alreadyCompiledOrModule(canon string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.compiled[canon]; ok {
		return true
	}
	_, ok := l.modules[canon]
	return ok
}

// runAndCache executes a compiled module's top level exactly once,
// recursively resolving any of its own imports it hasn't already loaded,
// then caches and returns the resulting Module.
func (l *Loader) runAndCache(vmi *vm.VM, canon string, chunk *value.Chunk) (*value.ModuleObj, error) {
	if mod, ok := l.cachedModule(canon); ok {
		return mod, nil
	}

	modEnv := value.NewEnvironment(canon, l.hostEnv)
	l.h.Allocate(modEnv, 128)
	if _, err := vmi.RunModuleTop(chunk, modEnv, canon); err != nil {
		return nil, err
	}

	mod := value.NewModule(moduleName(canon), canon, modEnv)
	l.h.Allocate(mod, 64)

	l.mu.Lock()
	if existing, ok := l.modules[canon]; ok {
		l.mu.Unlock()
		return existing.AsObject().(*value.ModuleObj), nil
	}
	l.modules[canon] = value.Obj(mod)
	l.mu.Unlock()
	return mod, nil
}

// EnumerateRoots satisfies vm.ModuleLoader: every executed module stays
// reachable from the loader's own cache even when nothing else in the
// running program still references it, so a second IMPORT of the same
// path after the first reference drops out of scope still finds it
// without recompiling or re-running its top level.
func (l *Loader) EnumerateRoots(visit func(value.Value)) {
	l.mu.Lock()
	keys := maps.Keys(l.modules)
	values := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		values = append(values, l.modules[k])
	}
	l.mu.Unlock()
	for _, v := range values {
		visit(v)
	}
}
