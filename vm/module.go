package vm

import (
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vmerrors"
)

// RunModuleTop executes a freshly compiled module's top level as a nested
// frame above every register currently in use, then returns its RETURN
// value (normally unused by callers). Unlike RunChunk, this never resets
// vm.frames — IMPORT can be reached while a user call is already mid-flight,
// and clobbering the frame stack at that point would corrupt the running
// program. Register 0 is never allocated by the compiler to any local or
// temporary, so it is a safe, always-dead landing spot for popFrame's
// bookkeeping write.
func (vm *VM) RunModuleTop(chunk *value.Chunk, env *value.EnvironmentObj, modulePath string) (value.Value, error) {
	depthBefore := len(vm.frames)
	callerAbs := vm.regBase
	newRegBase := vm.used
	if newRegBase+chunk.MaxRegs > vm.maxRegs {
		return value.Nil, vmerrors.StackOverflow(vm.curModulePath, 0)
	}

	vm.frames = append(vm.frames, callFrame{
		regBase:    vm.regBase,
		chunk:      vm.curChunk,
		ip:         vm.ip,
		resultReg:  0,
		moduleEnv:  vm.curModuleEnv,
		modulePath: vm.curModulePath,
		fn:         vm.curFn,
	})

	vm.regBase = newRegBase
	vm.curChunk = chunk
	vm.ip = 0
	vm.curModuleEnv = env
	vm.curModulePath = modulePath
	vm.curFn = nil
	vm.bumpUsed(chunk.MaxRegs)

	return vm.runUntilFrameDepth(depthBefore, callerAbs)
}
