package vm

import (
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vmerrors"
)

// callTarget resolves a value used in call position: a bytecode or
// native Function, or a StructDef acting as its instance constructor.
func (vm *VM) callTarget(v value.Value) (value.Object, bool) {
	if !v.IsObject() {
		return nil, false
	}
	switch v.AsObject().(type) {
	case *value.FunctionObj, *value.StructDefObj:
		return v.AsObject(), true
	}
	return nil, false
}

// beginCall implements the CALL/ASYNC dispatch step shared by both
// opcodes: validate the callee, construct a struct instance directly,
// invoke a native function inline, or push a frame and switch to the
// callee's chunk for a bytecode function. absA is the absolute register
// holding the callee (and where the result lands); argc counts the
// following contiguous argument registers. For a struct or native callee
// the result is returned directly; for a bytecode callee the pushed frame
// deposits it in absA when it returns. ASYNC's caller wraps the result
// in a resolved Future and writes that to its own destination register.
func (vm *VM) beginCall(absA int, argc byte, line int) (value.Value, error) {
	callee := vm.regs[absA]
	target, ok := vm.callTarget(callee)
	if !ok {
		return value.Nil, vmerrors.Type(vm.curModulePath, line, callee.Stringify(), "value is not callable")
	}

	args := vm.regs[absA+1 : absA+1+int(argc)]

	if def, isStruct := target.(*value.StructDefObj); isStruct {
		if len(def.Fields) != int(argc) {
			return value.Nil, vmerrors.Arity(vm.curModulePath, line, def.Name, len(def.Fields), int(argc))
		}
		inst := value.NewStructInstance(def, args)
		vm.h.Allocate(inst, 32+16*len(def.Fields))
		return value.Obj(inst), nil
	}

	fn := target.(*value.FunctionObj)
	if fn.IsNative {
		if fn.Arity >= 0 && fn.Arity != int(argc) {
			return value.Nil, vmerrors.Arity(vm.curModulePath, line, fn.Name, fn.Arity, int(argc))
		}
		res, err := fn.Native(args)
		if err != nil {
			if ve, ok := err.(*vmerrors.Error); ok {
				return value.Nil, ve
			}
			return value.Nil, vmerrors.Type(vm.curModulePath, line, "", "%v", err)
		}
		return res, nil
	}

	if fn.Arity != int(argc) {
		return value.Nil, vmerrors.Arity(vm.curModulePath, line, fn.Name, fn.Arity, int(argc))
	}
	if fn.ModuleEnv == nil {
		fn.ModuleEnv = vm.curModuleEnv
	}
	if len(vm.frames) >= vm.maxFrames {
		return value.Nil, vmerrors.StackOverflow(vm.curModulePath, line)
	}

	vm.frames = append(vm.frames, callFrame{
		regBase:    vm.regBase,
		chunk:      vm.curChunk,
		ip:         vm.ip,
		resultReg:  byte(absA - vm.regBase),
		moduleEnv:  vm.curModuleEnv,
		modulePath: vm.curModulePath,
		fn:         vm.curFn,
	})

	newRegBase := absA
	if newRegBase+fn.Chunk.MaxRegs > vm.maxRegs {
		vm.frames = vm.frames[:len(vm.frames)-1]
		return value.Nil, vmerrors.StackOverflow(vm.curModulePath, line)
	}
	vm.regBase = newRegBase
	vm.curChunk = fn.Chunk
	vm.ip = 0
	vm.curModuleEnv = fn.ModuleEnv
	vm.curModulePath = fn.ModulePath
	vm.curFn = fn
	vm.bumpUsed(fn.Chunk.MaxRegs)

	// Signal the dispatch loop to keep running the callee instead of
	// treating this as a completed call: handled by returning a sentinel
	// the caller checks for via callPushed.
	return value.Nil, errCallPushed
}

// errCallPushed is a sentinel telling the dispatch loop that beginCall
// switched execution into a new frame rather than producing an
// immediate result; it is never surfaced to user code.
var errCallPushed = &vmerrors.Error{Kind: "__framePushed"}

// popFrame restores the caller's execution state after a RETURN and
// deposits result into the caller's result register. Returns false if
// there was no caller (the top-level chunk itself returned).
func (vm *VM) popFrame(result value.Value) bool {
	if len(vm.frames) == 0 {
		return false
	}
	f := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.regBase = f.regBase
	vm.curChunk = f.chunk
	vm.ip = f.ip
	vm.curModuleEnv = f.moduleEnv
	vm.curModulePath = f.modulePath
	vm.curFn = f.fn
	vm.regs[vm.regBase+int(f.resultReg)] = result
	return true
}
