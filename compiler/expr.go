package compiler

import (
	"github.com/gtkrshnaaa/unnarize/ast"
	"github.com/gtkrshnaaa/unnarize/bytecode"
	"github.com/gtkrshnaaa/unnarize/value"
)

// compileExpr lowers e so its value ends up in register dest, the
// caller-chosen destination register convention used throughout the
// compiler.
func (c *Compiler) compileExpr(e ast.Expr, dest byte) {
	switch n := e.(type) {
	case *ast.Literal:
		c.compileLiteral(n, dest)
	case *ast.Var:
		c.compileVar(n, dest)
	case *ast.Unary:
		c.compileUnary(n, dest)
	case *ast.Binary:
		c.compileBinary(n, dest)
	case *ast.ArrayLit:
		c.compileArrayLit(n, dest)
	case *ast.IndexGet:
		c.compileIndexGet(n, dest)
	case *ast.PropertyGet:
		c.compilePropertyGet(n, dest)
	case *ast.Call:
		c.compileCall(n, dest)
	case *ast.Await:
		c.compileAwait(n, dest)
	default:
		c.fail(e.Line(), "unsupported expression node %T", e)
	}
}

const int16Min, int16Max = -32768, 32767

func (c *Compiler) compileLiteral(n *ast.Literal, dest byte) {
	switch n.Kind {
	case ast.LitInt:
		if n.Int >= int16Min && n.Int <= int16Max {
			c.emit(bytecode.MakeAsBx(bytecode.OpLoadI, dest, int32(n.Int)), n.Line())
		} else {
			idx := c.fs.chunk.AddConstant(value.Int(n.Int))
			c.emitLoadK(dest, idx, n.Line())
		}
	case ast.LitFloat:
		idx := c.fs.chunk.AddConstant(value.Float(n.Float))
		c.emitLoadK(dest, idx, n.Line())
	case ast.LitString:
		idx := c.addObjConstant(c.internName(n.Str))
		c.emitLoadK(dest, idx, n.Line())
	case ast.LitTrue:
		c.emit(bytecode.MakeABC(bytecode.OpLoadTrue, dest, 0, 0), n.Line())
	case ast.LitFalse:
		c.emit(bytecode.MakeABC(bytecode.OpLoadFalse, dest, 0, 0), n.Line())
	case ast.LitNil:
		c.emit(bytecode.MakeABC(bytecode.OpLoadNil, dest, 0, 0), n.Line())
	default:
		c.fail(n.Line(), "unsupported literal kind %d", n.Kind)
	}
}

func (c *Compiler) compileVar(n *ast.Var, dest byte) {
	if reg, ok := c.resolveLocal(n.Name); ok {
		if reg != dest {
			c.emit(bytecode.MakeABC(bytecode.OpMove, dest, reg, 0), n.Line())
		}
		return
	}
	kc := c.nameConst(n.Name)
	c.emit(bytecode.MakeABx(bytecode.OpGetGlobal, dest, kc), n.Line())
}

func (c *Compiler) compileUnary(n *ast.Unary, dest byte) {
	m := c.mark()
	t := c.alloc()
	c.compileExpr(n.Operand, t)
	switch n.Op {
	case "-":
		c.emit(bytecode.MakeABC(bytecode.OpNeg, dest, t, 0), n.Line())
	case "!":
		c.emit(bytecode.MakeABC(bytecode.OpNot, dest, t, 0), n.Line())
	default:
		c.fail(n.Line(), "undefined unary operator %q", n.Op)
	}
	c.freeTo(m)
}

func binaryOpcode(op string) (bytecode.Op, bool) {
	switch op {
	case "+":
		return bytecode.OpAdd, true
	case "-":
		return bytecode.OpSub, true
	case "*":
		return bytecode.OpMul, true
	case "/":
		return bytecode.OpDiv, true
	case "%":
		return bytecode.OpMod, true
	case "<":
		return bytecode.OpLt, true
	case "<=":
		return bytecode.OpLe, true
	case ">":
		return bytecode.OpGt, true
	case ">=":
		return bytecode.OpGe, true
	case "==":
		return bytecode.OpEq, true
	case "!=":
		return bytecode.OpNe, true
	}
	return 0, false
}

// compileBinary lowers arithmetic and comparison operators directly and
// lowers && / || to branches so they short-circuit: the left operand's
// value is the result whenever it decides the outcome, and the right
// operand is only evaluated otherwise.
func (c *Compiler) compileBinary(n *ast.Binary, dest byte) {
	switch n.Op {
	case "&&":
		c.compileExpr(n.Left, dest)
		jf := c.emitJumpFalse(dest, n.Line())
		c.compileExpr(n.Right, dest)
		c.patchAsBx(jf, bytecode.OpJmpFalse, dest)
		return
	case "||":
		c.compileExpr(n.Left, dest)
		jt := c.emitJumpTrue(dest, n.Line())
		c.compileExpr(n.Right, dest)
		c.patchAsBx(jt, bytecode.OpJmpTrue, dest)
		return
	}
	op, ok := binaryOpcode(n.Op)
	if !ok {
		c.fail(n.Line(), "undefined binary operator %q", n.Op)
		return
	}
	m := c.mark()
	l := c.alloc()
	c.compileExpr(n.Left, l)
	r := c.alloc()
	c.compileExpr(n.Right, r)
	c.emit(bytecode.MakeABC(op, dest, l, r), n.Line())
	c.freeTo(m)
}

func (c *Compiler) compileArrayLit(n *ast.ArrayLit, dest byte) {
	c.emit(bytecode.MakeABC(bytecode.OpNewArray, dest, 0, 0), n.Line())
	for _, el := range n.Elements {
		m := c.mark()
		t := c.alloc()
		c.compileExpr(el, t)
		c.emit(bytecode.MakeABC(bytecode.OpPush, dest, t, 0), n.Line())
		c.freeTo(m)
	}
}

func (c *Compiler) compileIndexGet(n *ast.IndexGet, dest byte) {
	m := c.mark()
	t1 := c.alloc()
	c.compileExpr(n.Target, t1)
	t2 := c.alloc()
	c.compileExpr(n.Index, t2)
	c.emit(bytecode.MakeABC(bytecode.OpGetIdx, dest, t1, t2), n.Line())
	c.freeTo(m)
}

func (c *Compiler) compilePropertyGet(n *ast.PropertyGet, dest byte) {
	m := c.mark()
	t1 := c.alloc()
	c.compileExpr(n.Object, t1)
	kc := c.nameConst(n.Field)
	if kc > 0xFF {
		c.fail(n.Line(), "too many constants for property access in function %q", c.fs.chunk.Name)
	}
	c.emit(bytecode.MakeABC(bytecode.OpGetProp, dest, t1, byte(kc)), n.Line())
	c.freeTo(m)
}

// builtinArity names the call-position identifiers the compiler folds
// directly into dedicated opcodes instead of emitting a generic CALL.
var builtinArity = map[string]int{"print": 1, "push": 2, "pop": 1, "length": 1}

func (c *Compiler) compileCall(n *ast.Call, dest byte) {
	if v, ok := n.Callee.(*ast.Var); ok {
		if arity, isBuiltin := builtinArity[v.Name]; isBuiltin && len(n.Args) == arity {
			if _, shadowed := c.resolveLocal(v.Name); !shadowed {
				c.compileBuiltinCall(v.Name, n, dest)
				return
			}
		}
	}
	c.compileGenericCall(n, dest)
}

func (c *Compiler) compileBuiltinCall(name string, n *ast.Call, dest byte) {
	line := n.Line()
	switch name {
	case "print":
		m := c.mark()
		t := c.alloc()
		c.compileExpr(n.Args[0], t)
		c.emit(bytecode.MakeABC(bytecode.OpPrint, t, 0, 0), line)
		c.freeTo(m)
		c.emit(bytecode.MakeABC(bytecode.OpLoadNil, dest, 0, 0), line)
	case "push":
		m := c.mark()
		t1 := c.alloc()
		c.compileExpr(n.Args[0], t1)
		t2 := c.alloc()
		c.compileExpr(n.Args[1], t2)
		c.emit(bytecode.MakeABC(bytecode.OpPush, t1, t2, 0), line)
		c.freeTo(m)
		c.emit(bytecode.MakeABC(bytecode.OpLoadNil, dest, 0, 0), line)
	case "pop":
		m := c.mark()
		t1 := c.alloc()
		c.compileExpr(n.Args[0], t1)
		c.emit(bytecode.MakeABC(bytecode.OpPop, dest, t1, 0), line)
		c.freeTo(m)
	case "length":
		m := c.mark()
		t1 := c.alloc()
		c.compileExpr(n.Args[0], t1)
		c.emit(bytecode.MakeABC(bytecode.OpLen, dest, t1, 0), line)
		c.freeTo(m)
	}
}

func (c *Compiler) compileGenericCall(n *ast.Call, dest byte) {
	isAsync := false
	if v, ok := n.Callee.(*ast.Var); ok {
		if _, isLocal := c.resolveLocal(v.Name); !isLocal {
			isAsync = c.isAsyncName(v.Name)
		}
	}
	if len(n.Args) > 255 {
		c.fail(n.Line(), "too many call arguments")
		return
	}
	m := c.mark()
	fn := c.alloc()
	c.compileExpr(n.Callee, fn)
	for _, a := range n.Args {
		ar := c.alloc()
		c.compileExpr(a, ar)
	}
	argc := byte(len(n.Args))
	if isAsync {
		c.emit(bytecode.MakeABC(bytecode.OpAsync, dest, fn, argc), n.Line())
	} else {
		c.emit(bytecode.MakeABC(bytecode.OpCall, fn, argc, 1), n.Line())
		if dest != fn {
			c.emit(bytecode.MakeABC(bytecode.OpMove, dest, fn, 0), n.Line())
		}
	}
	c.freeTo(m)
}

func (c *Compiler) compileAwait(n *ast.Await, dest byte) {
	m := c.mark()
	t := c.alloc()
	c.compileExpr(n.Operand, t)
	c.emit(bytecode.MakeABC(bytecode.OpAwait, dest, t, 0), n.Line())
	c.freeTo(m)
}
