// Package compiler lowers an AST tree into a per-function value.Chunk:
// register allocation, local-variable scoping, jump patching, and the
// self-modifying-assignment peephole.
package compiler

import (
	"path"
	"strings"

	"github.com/gtkrshnaaa/unnarize/ast"
	"github.com/gtkrshnaaa/unnarize/bytecode"
	"github.com/gtkrshnaaa/unnarize/heap"
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vmerrors"
)

const (
	maxLocals    = 200
	maxRegisters = 256
)

type localVar struct {
	name  string
	reg   byte
	depth int
}

type funcState struct {
	chunk      *value.Chunk
	locals     []localVar
	scopeDepth int
	nextReg    int
	maxReg     int
	enclosing  *funcState
}

// Compiler lowers one module's AST into bytecode. A fresh Compiler is
// used per module; nested function declarations are compiled by pushing
// a child funcState onto the same Compiler rather than constructing a
// new one, so constant-pool rooting spans the whole module compile.
type Compiler struct {
	h          *heap.Heap
	modulePath string
	fs         *funcState
	asyncNames map[string]bool
	rooted     []value.Object
	err        *vmerrors.Error
}

func New(h *heap.Heap, modulePath string) *Compiler {
	return &Compiler{h: h, modulePath: modulePath}
}

func (c *Compiler) fail(line int, format string, args ...interface{}) {
	if c.err == nil {
		c.err = vmerrors.Resolve(line, format, args...)
	}
}

// CompileModule compiles a top-level block into a zero-argument chunk.
// Every constant object allocated anywhere during the compile — including
// nested function constants — is kept rooted against a concurrent GC
// cycle until the whole module has finished compiling.
func (c *Compiler) CompileModule(body *ast.Block) (*value.Chunk, error) {
	c.asyncNames = collectAsyncNames(body.Stmts)
	chunk, err := c.compileFunction("<module>", nil, body)
	for range c.rooted {
		c.h.PopCompileRoot()
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// compileFunction compiles one function body (the module body, or a
// nested FunctionDecl) into its own chunk. Parameters occupy registers
// 1..len(params); register 0 is reserved for the function's own value,
// per the call protocol's register-window convention.
func (c *Compiler) compileFunction(name string, params []string, body *ast.Block) (*value.Chunk, error) {
	fs := &funcState{
		chunk:     value.NewChunk(name),
		nextReg:   1 + len(params),
		maxReg:    1 + len(params),
		enclosing: c.fs,
	}
	for i, p := range params {
		fs.locals = append(fs.locals, localVar{name: p, reg: byte(1 + i), depth: 0})
	}
	c.fs = fs
	c.compileBlockStmts(body.Stmts)
	c.emit(bytecode.MakeABC(bytecode.OpReturnNil, 0, 0, 0), body.Line())
	fs.chunk.MaxRegs = fs.maxReg
	c.fs = fs.enclosing
	if c.err != nil {
		return nil, c.err
	}
	return fs.chunk, nil
}

// collectAsyncNames walks a statement list (recursing through nested
// blocks, but not into a FunctionDecl's own parameter scope) gathering
// every declared function name and whether it was declared async, so
// call sites anywhere in the module can tell whether to emit ASYNC or
// CALL before ever reaching the declaration itself.
func collectAsyncNames(stmts []ast.Stmt) map[string]bool {
	out := map[string]bool{}
	var walk func([]ast.Stmt)
	walk = func(ss []ast.Stmt) {
		for _, s := range ss {
			switch n := s.(type) {
			case *ast.FunctionDecl:
				out[n.Name] = n.Async
				walk(n.Body.Stmts)
			case *ast.If:
				walk(n.Then.Stmts)
				if n.Else != nil {
					walk(n.Else.Stmts)
				}
			case *ast.While:
				walk(n.Body.Stmts)
			case *ast.For:
				walk(n.Body.Stmts)
			case *ast.Foreach:
				walk(n.Body.Stmts)
			case *ast.Block:
				walk(n.Stmts)
			}
		}
	}
	walk(stmts)
	return out
}

func (c *Compiler) isAsyncName(name string) bool {
	return c.asyncNames[name]
}

func (c *Compiler) emit(instr bytecode.Instr, line int) int {
	return c.fs.chunk.Emit(instr, line)
}

// alloc reserves the next free register in the current function, raising
// the high-water mark. maxRegisters bounds a function's register window
// to what an 8-bit instruction operand can address.
func (c *Compiler) alloc() byte {
	if c.fs.nextReg >= maxRegisters {
		c.fail(0, "too many registers in function %q", c.fs.chunk.Name)
		return byte(maxRegisters - 1)
	}
	r := byte(c.fs.nextReg)
	c.fs.nextReg++
	if c.fs.nextReg > c.fs.maxReg {
		c.fs.maxReg = c.fs.nextReg
	}
	return r
}

func (c *Compiler) mark() int       { return c.fs.nextReg }
func (c *Compiler) freeTo(m int)    { c.fs.nextReg = m }

// isModuleScope reports whether the statement currently compiling sits
// directly in the module's top-level body — the outermost funcState (no
// enclosing function) at its outermost scope (not nested inside an `if`,
// `while`, `for`, or bare block). Only a `var` declared there becomes a
// module member, visible to sibling functions and importers; a `var`
// inside a top-level `if`/loop body stays an ordinary block-scoped local.
func (c *Compiler) isModuleScope() bool {
	return c.fs.enclosing == nil && c.fs.scopeDepth == 0
}

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

// endScope pops every local declared at the current depth and rewinds
// nextReg to the first such local's register, freeing both the locals
// and any temporaries allocated above them in one step.
func (c *Compiler) endScope() {
	d := c.fs.scopeDepth
	i := len(c.fs.locals)
	for i > 0 && c.fs.locals[i-1].depth == d {
		i--
	}
	if i < len(c.fs.locals) {
		c.fs.nextReg = int(c.fs.locals[i].reg)
	}
	c.fs.locals = c.fs.locals[:i]
	c.fs.scopeDepth--
}

func (c *Compiler) declareLocal(name string, line int) byte {
	if len(c.fs.locals) >= maxLocals {
		c.fail(line, "too many locals in function %q", c.fs.chunk.Name)
	}
	reg := c.alloc()
	c.fs.locals = append(c.fs.locals, localVar{name: name, reg: reg, depth: c.fs.scopeDepth})
	return reg
}

func (c *Compiler) resolveLocal(name string) (byte, bool) {
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		if c.fs.locals[i].name == name {
			return c.fs.locals[i].reg, true
		}
	}
	return 0, false
}

// internName interns an identifier or literal string through the heap so
// it is both collectible and de-duplicated with every other occurrence
// of the same text anywhere in the program.
func (c *Compiler) internName(name string) *value.StringObj {
	return c.h.Interner().Intern([]byte(name), c.h)
}

// addObjConstant appends an object constant and roots it for the
// remainder of the module compile (see CompileModule).
func (c *Compiler) addObjConstant(o value.Object) int {
	c.h.PushCompileRoot(o)
	c.rooted = append(c.rooted, o)
	return c.fs.chunk.AddConstant(value.Obj(o))
}

func (c *Compiler) nameConst(name string) uint16 {
	idx := c.addObjConstant(c.internName(name))
	if idx > 0xFFFF {
		c.fail(0, "too many constants in function %q", c.fs.chunk.Name)
		return 0
	}
	return uint16(idx)
}

func (c *Compiler) emitLoadK(dest byte, idx int, line int) {
	if idx > 0xFFFF {
		c.fail(line, "too many constants in function %q", c.fs.chunk.Name)
		idx = 0
	}
	c.emit(bytecode.MakeABx(bytecode.OpLoadK, dest, uint16(idx)), line)
}

func (c *Compiler) emitJumpFalse(reg byte, line int) int {
	return c.emit(bytecode.MakeAsBx(bytecode.OpJmpFalse, reg, 0), line)
}

func (c *Compiler) emitJumpTrue(reg byte, line int) int {
	return c.emit(bytecode.MakeAsBx(bytecode.OpJmpTrue, reg, 0), line)
}

func (c *Compiler) patchAsBx(at int, op bytecode.Op, reg byte) {
	target := len(c.fs.chunk.Code)
	offset := int32(target - (at + 1))
	c.fs.chunk.Patch(at, bytecode.MakeAsBx(op, reg, offset))
}

func (c *Compiler) emitJump24(op bytecode.Op, line int) int {
	return c.emit(bytecode.MakeSBx24(op, 0), line)
}

func (c *Compiler) patchJump24(at int, op bytecode.Op) {
	target := len(c.fs.chunk.Code)
	offset := int32(target - (at + 1))
	c.fs.chunk.Patch(at, bytecode.MakeSBx24(op, offset))
}

func (c *Compiler) emitLoopBack(loopStart, line int) {
	at := c.emit(bytecode.MakeSBx24(bytecode.OpLoop, 0), line)
	offset := int32(loopStart - (at + 1))
	c.fs.chunk.Patch(at, bytecode.MakeSBx24(bytecode.OpLoop, offset))
}

// deriveAlias picks a default import binding name from a module path,
// e.g. "lib/math.un" -> "math", when no explicit alias is given.
func deriveAlias(p string) string {
	base := path.Base(p)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
