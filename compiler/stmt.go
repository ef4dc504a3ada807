package compiler

import (
	"github.com/gtkrshnaaa/unnarize/ast"
	"github.com/gtkrshnaaa/unnarize/bytecode"
	"github.com/gtkrshnaaa/unnarize/value"
)

func (c *Compiler) compileBlockStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.compileStmt(s)
		if c.err != nil {
			return
		}
	}
}

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.ExprStmt:
		m := c.mark()
		t := c.alloc()
		c.compileExpr(n.X, t)
		c.freeTo(m)
	case *ast.VarDecl:
		if c.isModuleScope() {
			c.compileModuleVarDecl(n)
		} else {
			reg := c.declareLocal(n.Name, n.Line())
			if n.Init != nil {
				c.compileExpr(n.Init, reg)
			} else {
				c.emit(bytecode.MakeABC(bytecode.OpLoadNil, reg, 0, 0), n.Line())
			}
		}
	case *ast.Assign:
		c.compileAssign(n)
	case *ast.IndexAssign:
		c.compileIndexAssign(n)
	case *ast.PropertyAssign:
		c.compilePropertyAssign(n)
	case *ast.If:
		c.compileIf(n)
	case *ast.While:
		c.compileWhile(n)
	case *ast.For:
		c.compileFor(n)
	case *ast.Foreach:
		c.compileForeach(n)
	case *ast.FunctionDecl:
		c.compileFunctionDecl(n)
	case *ast.Return:
		c.compileReturn(n)
	case *ast.StructDecl:
		c.compileStructDecl(n)
	case *ast.Import:
		c.compileImportStmt(n)
	case *ast.Block:
		c.beginScope()
		c.compileBlockStmts(n.Stmts)
		c.endScope()
	default:
		c.fail(s.Line(), "unsupported statement node %T", s)
	}
}

// compileModuleVarDecl lowers a top-level `var` to a DEFGLOBAL into the
// module's own EnvironmentObj instead of a chunk-local register, so the
// name is both capturable by a sibling function (compileVar/compileAssign
// already fall through to GETGLOBAL/SETGLOBAL whenever resolveLocal finds
// no local of that name in the enclosing function) and visible as a
// member on the Module object an importer sees.
func (c *Compiler) compileModuleVarDecl(n *ast.VarDecl) {
	m := c.mark()
	t := c.alloc()
	if n.Init != nil {
		c.compileExpr(n.Init, t)
	} else {
		c.emit(bytecode.MakeABC(bytecode.OpLoadNil, t, 0, 0), n.Line())
	}
	kc := c.nameConst(n.Name)
	c.emit(bytecode.MakeABx(bytecode.OpDefGlobal, t, kc), n.Line())
	c.freeTo(m)
}

func compoundArithOp(op string) (bytecode.Op, bool) {
	switch op {
	case "+=":
		return bytecode.OpAdd, true
	case "-=":
		return bytecode.OpSub, true
	case "*=":
		return bytecode.OpMul, true
	case "/=":
		return bytecode.OpDiv, true
	}
	return 0, false
}

// compileAssign folds `x = x op expr` for a local x into a single
// in-place arithmetic opcode; globals still need a GETGLOBAL/SETGLOBAL
// pair around the arithmetic since they aren't register-resident.
func (c *Compiler) compileAssign(n *ast.Assign) {
	if reg, ok := c.resolveLocal(n.Name); ok {
		if n.Op == "=" {
			if b, isBin := n.Value.(*ast.Binary); isBin {
				if lv, isVar := b.Left.(*ast.Var); isVar && lv.Name == n.Name {
					if op, ok := binaryOpcode(b.Op); ok && op >= bytecode.OpAdd && op <= bytecode.OpMod {
						m := c.mark()
						t := c.alloc()
						c.compileExpr(b.Right, t)
						c.emit(bytecode.MakeABC(op, reg, reg, t), n.Line())
						c.freeTo(m)
						return
					}
				}
			}
			c.compileExpr(n.Value, reg)
			return
		}
		op, ok := compoundArithOp(n.Op)
		if !ok {
			c.fail(n.Line(), "undefined assignment operator %q", n.Op)
			return
		}
		m := c.mark()
		t := c.alloc()
		c.compileExpr(n.Value, t)
		c.emit(bytecode.MakeABC(op, reg, reg, t), n.Line())
		c.freeTo(m)
		return
	}

	kc := c.nameConst(n.Name)
	if n.Op == "=" {
		m := c.mark()
		t := c.alloc()
		c.compileExpr(n.Value, t)
		c.emit(bytecode.MakeABx(bytecode.OpSetGlobal, t, kc), n.Line())
		c.freeTo(m)
		return
	}
	op, ok := compoundArithOp(n.Op)
	if !ok {
		c.fail(n.Line(), "undefined assignment operator %q", n.Op)
		return
	}
	m := c.mark()
	t := c.alloc()
	c.emit(bytecode.MakeABx(bytecode.OpGetGlobal, t, kc), n.Line())
	t2 := c.alloc()
	c.compileExpr(n.Value, t2)
	c.emit(bytecode.MakeABC(op, t, t, t2), n.Line())
	c.emit(bytecode.MakeABx(bytecode.OpSetGlobal, t, kc), n.Line())
	c.freeTo(m)
}

func (c *Compiler) compileIndexAssign(n *ast.IndexAssign) {
	m := c.mark()
	tgt := c.alloc()
	c.compileExpr(n.Target, tgt)
	idx := c.alloc()
	c.compileExpr(n.Index, idx)
	val := c.alloc()
	c.compileExpr(n.Value, val)
	c.emit(bytecode.MakeABC(bytecode.OpSetIdx, tgt, idx, val), n.Line())
	c.freeTo(m)
}

func (c *Compiler) compilePropertyAssign(n *ast.PropertyAssign) {
	m := c.mark()
	tgt := c.alloc()
	c.compileExpr(n.Object, tgt)
	kc := c.nameConst(n.Name)
	if kc > 0xFF {
		c.fail(n.Line(), "too many constants for property access in function %q", c.fs.chunk.Name)
	}
	val := c.alloc()
	c.compileExpr(n.Value, val)
	c.emit(bytecode.MakeABC(bytecode.OpSetProp, tgt, byte(kc), val), n.Line())
	c.freeTo(m)
}

func (c *Compiler) compileIf(n *ast.If) {
	m := c.mark()
	t := c.alloc()
	c.compileExpr(n.Cond, t)
	jf := c.emitJumpFalse(t, n.Line())
	c.freeTo(m)

	c.beginScope()
	c.compileBlockStmts(n.Then.Stmts)
	c.endScope()

	if n.Else != nil {
		jEnd := c.emitJump24(bytecode.OpJmp, n.Line())
		c.patchAsBx(jf, bytecode.OpJmpFalse, t)
		c.beginScope()
		c.compileBlockStmts(n.Else.Stmts)
		c.endScope()
		c.patchJump24(jEnd, bytecode.OpJmp)
	} else {
		c.patchAsBx(jf, bytecode.OpJmpFalse, t)
	}
}

func (c *Compiler) compileWhile(n *ast.While) {
	loopStart := len(c.fs.chunk.Code)
	m := c.mark()
	t := c.alloc()
	c.compileExpr(n.Cond, t)
	jf := c.emitJumpFalse(t, n.Line())
	c.freeTo(m)

	c.beginScope()
	c.compileBlockStmts(n.Body.Stmts)
	c.endScope()

	c.emitLoopBack(loopStart, n.Line())
	c.patchAsBx(jf, bytecode.OpJmpFalse, t)
}

func (c *Compiler) compileFor(n *ast.For) {
	c.beginScope()
	if n.Init != nil {
		c.compileStmt(n.Init)
	}
	loopStart := len(c.fs.chunk.Code)

	var jf int
	var condReg byte
	hasCond := n.Cond != nil
	if hasCond {
		m := c.mark()
		condReg = c.alloc()
		c.compileExpr(n.Cond, condReg)
		jf = c.emitJumpFalse(condReg, n.Line())
		c.freeTo(m)
	}

	c.beginScope()
	c.compileBlockStmts(n.Body.Stmts)
	c.endScope()

	if n.Incr != nil {
		c.compileStmt(n.Incr)
	}
	c.emitLoopBack(loopStart, n.Line())
	if hasCond {
		c.patchAsBx(jf, bytecode.OpJmpFalse, condReg)
	}
	c.endScope()
}

// compileForeach opens a scope holding hidden `.col`/`.idx` locals that
// drive the iteration and are freed with everything else declared in the
// loop when the scope closes; the iteration variable lives in an inner
// scope so each pass reuses the same register for a fresh binding.
func (c *Compiler) compileForeach(n *ast.Foreach) {
	c.beginScope()
	colReg := c.declareLocal(".col", n.Line())
	c.compileExpr(n.Collection, colReg)
	idxReg := c.declareLocal(".idx", n.Line())
	c.emit(bytecode.MakeAsBx(bytecode.OpLoadI, idxReg, 0), n.Line())

	loopStart := len(c.fs.chunk.Code)
	m := c.mark()
	lenReg := c.alloc()
	c.emit(bytecode.MakeABC(bytecode.OpLen, lenReg, colReg, 0), n.Line())
	cmpReg := c.alloc()
	c.emit(bytecode.MakeABC(bytecode.OpLt, cmpReg, idxReg, lenReg), n.Line())
	jf := c.emitJumpFalse(cmpReg, n.Line())
	c.freeTo(m)

	c.beginScope()
	iterReg := c.declareLocal(n.Iter, n.Line())
	c.emit(bytecode.MakeABC(bytecode.OpGetIdx, iterReg, colReg, idxReg), n.Line())
	c.compileBlockStmts(n.Body.Stmts)
	c.endScope()

	m2 := c.mark()
	oneReg := c.alloc()
	c.emit(bytecode.MakeAsBx(bytecode.OpLoadI, oneReg, 1), n.Line())
	c.emit(bytecode.MakeABC(bytecode.OpAdd, idxReg, idxReg, oneReg), n.Line())
	c.freeTo(m2)

	c.emitLoopBack(loopStart, n.Line())
	c.patchAsBx(jf, bytecode.OpJmpFalse, cmpReg)
	c.endScope()
}

// compileFunctionDecl compiles the body into its own chunk and a new
// value.FunctionObj rooted for the duration of the compile (see
// Compiler.addObjConstant), then binds the function under its name as a
// module global — recursive self-calls resolve through GETGLOBAL like
// any other global reference.
func (c *Compiler) compileFunctionDecl(n *ast.FunctionDecl) {
	childChunk, err := c.compileFunction(n.Name, n.Params, n.Body)
	if err != nil {
		return
	}
	fo := value.NewBytecodeFunction(n.Name, len(n.Params), childChunk, nil, c.modulePath)
	fo.IsAsync = n.Async
	const approxFunctionObjSize = 96
	c.h.Allocate(fo, approxFunctionObjSize)

	idx := c.addObjConstant(fo)
	m := c.mark()
	t := c.alloc()
	c.emitLoadK(t, idx, n.Line())
	kc := c.nameConst(n.Name)
	c.emit(bytecode.MakeABx(bytecode.OpDefGlobal, t, kc), n.Line())
	c.freeTo(m)
}

func (c *Compiler) compileReturn(n *ast.Return) {
	if n.Value != nil {
		m := c.mark()
		t := c.alloc()
		c.compileExpr(n.Value, t)
		c.emit(bytecode.MakeABC(bytecode.OpReturn, t, 0, 0), n.Line())
		c.freeTo(m)
		return
	}
	c.emit(bytecode.MakeABC(bytecode.OpReturnNil, 0, 0, 0), n.Line())
}

// compileStructDecl emits STRUCTDEF with the struct's own name constant
// immediately followed by its field-name constants, the contiguous
// layout the opcode's execution semantics rely on (no other constant
// append can interleave between these calls).
func (c *Compiler) compileStructDecl(n *ast.StructDecl) {
	if len(n.Fields) > 255 {
		c.fail(n.Line(), "too many fields in struct %q", n.Name)
		return
	}
	nameIdx := c.addObjConstant(c.internName(n.Name))
	for _, f := range n.Fields {
		c.addObjConstant(c.internName(f))
	}
	if nameIdx > 0xFFFF {
		c.fail(n.Line(), "too many constants in function %q", c.fs.chunk.Name)
		return
	}
	c.emit(bytecode.MakeABx(bytecode.OpStructDef, byte(len(n.Fields)), uint16(nameIdx)), n.Line())
}

func (c *Compiler) compileImportStmt(n *ast.Import) {
	pathIdx := c.addObjConstant(c.internName(n.Path))
	if pathIdx > 0xFFFF {
		c.fail(n.Line(), "too many constants in function %q", c.fs.chunk.Name)
		return
	}
	m := c.mark()
	t := c.alloc()
	c.emit(bytecode.MakeABx(bytecode.OpImport, t, uint16(pathIdx)), n.Line())
	alias := n.Alias
	if alias == "" {
		alias = deriveAlias(n.Path)
	}
	kc := c.nameConst(alias)
	c.emit(bytecode.MakeABx(bytecode.OpDefGlobal, t, kc), n.Line())
	c.freeTo(m)
}
