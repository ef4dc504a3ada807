package vm

import (
	"fmt"

	"github.com/gtkrshnaaa/unnarize/bytecode"
	"github.com/gtkrshnaaa/unnarize/env"
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vmerrors"
)

// stepResult signals that the currently running top-level chunk (or, for
// a nested run started by ASYNC, the outermost pushed frame) has
// returned with no caller left to restore.
type stepResult struct {
	done  bool
	value value.Value
}

// dispatch runs the fetch-decode-execute loop until the top-level chunk
// returns or a fatal error occurs.
func (vm *VM) dispatch() (value.Value, error) {
	for {
		r, err := vm.step()
		if err != nil {
			return value.Nil, err
		}
		if r.done {
			return r.value, nil
		}
	}
}

// runUntilFrameDepth drives the same dispatch loop until the frame stack
// unwinds back to stopDepth (the call that produced it has returned),
// then reports the value beginCall's frame protocol deposited in absA —
// the same register CALL would have used. Used by ASYNC to evaluate a
// call synchronously before wrapping its result in a resolved Future.
func (vm *VM) runUntilFrameDepth(stopDepth, absA int) (value.Value, error) {
	for {
		r, err := vm.step()
		if err != nil {
			return value.Nil, err
		}
		if r.done {
			return r.value, nil
		}
		if len(vm.frames) == stopDepth {
			return vm.regs[absA], nil
		}
	}
}

func (vm *VM) constStr(idx int) *value.StringObj {
	return vm.curChunk.Constants[idx].AsObject().(*value.StringObj)
}

// step executes exactly one instruction.
func (vm *VM) step() (stepResult, error) {
	ip := vm.ip
	instr := vm.curChunk.Code[ip]
	vm.ip = ip + 1
	line := vm.curChunk.LineFor(ip)

	switch instr.Op() {
	case bytecode.OpMove:
		vm.setReg(instr.A(), vm.reg(instr.B()))

	case bytecode.OpLoadK:
		kv := vm.curChunk.Constants[instr.Bx()]
		if kv.IsObject() {
			// A function constant binds to its defining module the first
			// time its declaration executes; the chunk loading it here is
			// necessarily the defining module's own code, while the first
			// CALL might come from an importing module whose environment
			// must not leak into the callee's global resolution.
			if fo, ok := kv.AsObject().(*value.FunctionObj); ok && !fo.IsNative && fo.ModuleEnv == nil {
				fo.ModuleEnv = vm.curModuleEnv
			}
		}
		vm.setReg(instr.A(), kv)

	case bytecode.OpLoadI:
		vm.setReg(instr.A(), value.Int(int64(instr.SBx())))

	case bytecode.OpLoadNil:
		vm.setReg(instr.A(), value.Nil)

	case bytecode.OpLoadTrue:
		vm.setReg(instr.A(), value.Bool(true))

	case bytecode.OpLoadFalse:
		vm.setReg(instr.A(), value.Bool(false))

	case bytecode.OpGetGlobal:
		name := vm.constStr(int(instr.Bx()))
		v, err := env.GetGlobal(vm.curModuleEnv, name)
		if err != nil {
			return stepResult{}, vmerrors.Name(vm.curModulePath, line, string(name.Data))
		}
		vm.setReg(instr.A(), v)

	case bytecode.OpSetGlobal:
		name := vm.constStr(int(instr.Bx()))
		if err := env.SetGlobal(vm.curModuleEnv, name, vm.reg(instr.A())); err != nil {
			return stepResult{}, vmerrors.Name(vm.curModulePath, line, string(name.Data))
		}
		vm.h.WriteBarrier(vm.curModuleEnv)

	case bytecode.OpDefGlobal:
		name := vm.constStr(int(instr.Bx()))
		env.DefineGlobal(vm.curModuleEnv, name, vm.reg(instr.A()))
		vm.h.WriteBarrier(vm.curModuleEnv)

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
		r, err := vm.arith(arithSymbol(instr.Op()), vm.reg(instr.B()), vm.reg(instr.C()), line)
		if err != nil {
			return stepResult{}, err
		}
		vm.setReg(instr.A(), r)

	case bytecode.OpNeg:
		v := vm.reg(instr.B())
		switch {
		case v.IsInt():
			vm.setReg(instr.A(), value.Int(-v.AsInt()))
		case v.IsFloat():
			vm.setReg(instr.A(), value.Float(-v.AsFloat()))
		default:
			return stepResult{}, vmerrors.Type(vm.curModulePath, line, v.Stringify(), "cannot negate %s", v.TypeName())
		}

	case bytecode.OpLt, bytecode.OpLe, bytecode.OpGt, bytecode.OpGe, bytecode.OpEq, bytecode.OpNe:
		r, err := vm.compare(compareSymbol(instr.Op()), vm.reg(instr.B()), vm.reg(instr.C()), line)
		if err != nil {
			return stepResult{}, err
		}
		vm.setReg(instr.A(), r)

	case bytecode.OpNot:
		vm.setReg(instr.A(), value.Bool(!vm.reg(instr.B()).Truthy()))

	case bytecode.OpJmp:
		vm.ip += int(instr.SBx24())

	case bytecode.OpJmpFalse:
		if !vm.reg(instr.A()).Truthy() {
			vm.ip += int(instr.SBx())
		}

	case bytecode.OpJmpTrue:
		if vm.reg(instr.A()).Truthy() {
			vm.ip += int(instr.SBx())
		}

	case bytecode.OpLoop:
		vm.ip += int(instr.SBx24())

	case bytecode.OpCall:
		absA := vm.regBase + int(instr.A())
		res, err := vm.beginCall(absA, instr.B(), line)
		if err == errCallPushed {
			return stepResult{}, nil
		}
		if err != nil {
			return stepResult{}, err
		}
		vm.regs[absA] = res

	case bytecode.OpReturn:
		v := vm.reg(instr.A())
		if !vm.popFrame(v) {
			return stepResult{done: true, value: v}, nil
		}

	case bytecode.OpReturnNil:
		if !vm.popFrame(value.Nil) {
			return stepResult{done: true, value: value.Nil}, nil
		}

	case bytecode.OpGetProp:
		if err := vm.execGetProp(instr, line); err != nil {
			return stepResult{}, err
		}

	case bytecode.OpSetProp:
		if err := vm.execSetProp(instr, line); err != nil {
			return stepResult{}, err
		}

	case bytecode.OpGetIdx:
		r, err := vm.execGetIdx(instr, line)
		if err != nil {
			return stepResult{}, err
		}
		vm.setReg(instr.A(), r)

	case bytecode.OpSetIdx:
		if err := vm.execSetIdx(instr, line); err != nil {
			return stepResult{}, err
		}

	case bytecode.OpNewArray:
		arr := value.NewArray()
		vm.h.Allocate(arr, 32)
		vm.setReg(instr.A(), value.Obj(arr))

	case bytecode.OpNewMap:
		m := value.NewMap()
		vm.h.Allocate(m, 48)
		vm.setReg(instr.A(), value.Obj(m))

	case bytecode.OpStructDef:
		vm.execStructDef(instr)

	case bytecode.OpPush:
		arr, ok := vm.objAt(instr.A()).(*value.ArrayObj)
		if !ok {
			return stepResult{}, vmerrors.Type(vm.curModulePath, line, "", "push target is not an array")
		}
		arr.Push(vm.reg(instr.B()))
		vm.h.WriteBarrier(arr)

	case bytecode.OpPop:
		arr, ok := vm.objAt(instr.B()).(*value.ArrayObj)
		if !ok {
			return stepResult{}, vmerrors.Type(vm.curModulePath, line, "", "pop target is not an array")
		}
		vm.setReg(instr.A(), arr.Pop())

	case bytecode.OpLen:
		r, err := vm.execLen(instr, line)
		if err != nil {
			return stepResult{}, err
		}
		vm.setReg(instr.A(), r)

	case bytecode.OpImport:
		path := vm.constStr(int(instr.Bx()))
		mod, err := vm.loader.Load(vm, vm.curModulePath, string(path.Data))
		if err != nil {
			return stepResult{}, vmerrors.Import(vm.curModulePath, line, string(path.Data), err)
		}
		vm.setReg(instr.A(), value.Obj(mod))

	case bytecode.OpAsync:
		if err := vm.execAsync(instr, line); err != nil {
			return stepResult{}, err
		}

	case bytecode.OpAwait:
		vm.execAwait(instr)

	case bytecode.OpPrint:
		fmt.Fprintln(vm.stdout, vm.reg(instr.A()).Stringify())

	case bytecode.OpHalt:
		return stepResult{done: true, value: value.Nil}, nil

	case bytecode.OpNop:
		// no-op

	default:
		return stepResult{}, vmerrors.Type(vm.curModulePath, line, "", "unknown opcode %v", instr.Op())
	}

	return stepResult{}, nil
}

func arithSymbol(op bytecode.Op) byte {
	switch op {
	case bytecode.OpAdd:
		return '+'
	case bytecode.OpSub:
		return '-'
	case bytecode.OpMul:
		return '*'
	case bytecode.OpDiv:
		return '/'
	case bytecode.OpMod:
		return '%'
	}
	return 0
}

func compareSymbol(op bytecode.Op) string {
	switch op {
	case bytecode.OpLt:
		return "<"
	case bytecode.OpLe:
		return "<="
	case bytecode.OpGt:
		return ">"
	case bytecode.OpGe:
		return ">="
	case bytecode.OpEq:
		return "=="
	case bytecode.OpNe:
		return "!="
	}
	return ""
}

// objAt returns the heap object in register rel, or nil if it doesn't
// hold one.
func (vm *VM) objAt(rel byte) value.Object {
	v := vm.reg(rel)
	if !v.IsObject() {
		return nil
	}
	return v.AsObject()
}

func (vm *VM) execAsync(instr bytecode.Instr, line int) error {
	dest, fnB, argc := instr.A(), instr.B(), instr.C()
	absFn := vm.regBase + int(fnB)
	depthBefore := len(vm.frames)

	res, err := vm.beginCall(absFn, argc, line)
	var result value.Value
	switch {
	case err == errCallPushed:
		result, err = vm.runUntilFrameDepth(depthBefore, absFn)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		result = res
	}

	fut := value.NewResolvedFuture(result)
	vm.h.Allocate(fut, 48)
	vm.setReg(dest, value.Obj(fut))
	return nil
}

func (vm *VM) execAwait(instr bytecode.Instr) {
	a, b := instr.A(), instr.B()
	v := vm.reg(b)
	if v.IsObject() {
		if fu, ok := v.AsObject().(*value.FutureObj); ok {
			res, _ := fu.Await()
			vm.setReg(a, res)
			return
		}
	}
	vm.setReg(a, v)
}
