package vm

import (
	"github.com/gtkrshnaaa/unnarize/bytecode"
	"github.com/gtkrshnaaa/unnarize/env"
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vmerrors"
)

// execGetProp reads a named property. A missing struct field reads as Nil
// under the default UndefinedSilent mode;
// a missing module member is always a fatal name error and an unsupported
// target a fatal type error, regardless of mode. UndefinedStrict/
// UndefinedDebug only change the missing-struct-field case (vm.UndefinedMode).
func (vm *VM) execGetProp(instr bytecode.Instr, line int) error {
	a, b, kc := instr.A(), instr.B(), instr.C()
	name := vm.constStr(int(kc))
	tgt := vm.reg(b)
	if !tgt.IsObject() {
		return vmerrors.Type(vm.curModulePath, line, tgt.Stringify(), "cannot read property %q on %s", string(name.Data), tgt.TypeName())
	}
	switch o := tgt.AsObject().(type) {
	case *value.StructInstanceObj:
		v, ok := o.GetOk(string(name.Data))
		if ok {
			vm.setReg(a, v)
			return nil
		}
		switch vm.undefined {
		case UndefinedStrict:
			return vmerrors.Name(vm.curModulePath, line, string(name.Data))
		case UndefinedDebug:
			vm.setReg(a, value.Obj(vm.h.NewString([]byte("<undefined: "+string(name.Data)+">"))))
		default:
			vm.setReg(a, value.Nil)
		}
	case *value.ModuleObj:
		if v, ok := o.GetMember(name); ok {
			vm.setReg(a, v)
		} else {
			return vmerrors.Name(vm.curModulePath, line, string(name.Data))
		}
	case *value.StringObj:
		if string(name.Data) == "length" {
			vm.setReg(a, value.Int(int64(o.Len)))
		} else {
			vm.setReg(a, value.Nil)
		}
	default:
		return vmerrors.Type(vm.curModulePath, line, tgt.Stringify(), "cannot read property %q on %s", string(name.Data), tgt.TypeName())
	}
	return nil
}

// execSetProp assigns a struct field by name. Module members and strings
// are immutable from this opcode; writing a field that doesn't exist on
// the struct's definition is a range error.
func (vm *VM) execSetProp(instr bytecode.Instr, line int) error {
	a, kc, c := instr.A(), instr.B(), instr.C()
	name := vm.constStr(int(kc))
	tgt := vm.reg(a)
	inst, ok := tgtObject[*value.StructInstanceObj](tgt)
	if !ok {
		return vmerrors.Type(vm.curModulePath, line, tgt.Stringify(), "cannot set property %q on %s", string(name.Data), tgt.TypeName())
	}
	if !inst.Set(string(name.Data), vm.reg(c)) {
		return vmerrors.Range(vm.curModulePath, line, "struct %q has no field %q", inst.Def.Name, string(name.Data))
	}
	vm.h.WriteBarrier(inst)
	return nil
}

func tgtObject[T value.Object](v value.Value) (T, bool) {
	var zero T
	if !v.IsObject() {
		return zero, false
	}
	o, ok := v.AsObject().(T)
	return o, ok
}

func mapKeyOf(v value.Value) (value.MapKey, bool) {
	if v.IsInt() {
		return value.IntKey(v.AsInt()), true
	}
	if s, ok := tgtObject[*value.StringObj](v); ok {
		return value.StringKey(string(s.Data)), true
	}
	return value.MapKey{}, false
}

func (vm *VM) execGetIdx(instr bytecode.Instr, line int) (value.Value, error) {
	b, c := instr.B(), instr.C()
	tgt := vm.reg(b)
	idxVal := vm.reg(c)
	if arr, ok := tgtObject[*value.ArrayObj](tgt); ok {
		if !idxVal.IsInt() {
			return value.Nil, vmerrors.Type(vm.curModulePath, line, idxVal.Stringify(), "array index must be an integer")
		}
		return arr.Get(idxVal.AsInt()), nil
	}
	if m, ok := tgtObject[*value.MapObj](tgt); ok {
		key, ok := mapKeyOf(idxVal)
		if !ok {
			return value.Nil, vmerrors.Type(vm.curModulePath, line, idxVal.Stringify(), "map key must be an integer or string")
		}
		v, _ := m.Get(key)
		return v, nil
	}
	return value.Nil, vmerrors.Type(vm.curModulePath, line, tgt.Stringify(), "cannot index into %s", tgt.TypeName())
}

func (vm *VM) execSetIdx(instr bytecode.Instr, line int) error {
	a, b, c := instr.A(), instr.B(), instr.C()
	tgt := vm.reg(a)
	idxVal := vm.reg(b)
	val := vm.reg(c)
	if arr, ok := tgtObject[*value.ArrayObj](tgt); ok {
		if !idxVal.IsInt() {
			return vmerrors.Type(vm.curModulePath, line, idxVal.Stringify(), "array index must be an integer")
		}
		if err := arr.Set(idxVal.AsInt(), val); err != nil {
			return vmerrors.Range(vm.curModulePath, line, "%v", err)
		}
		vm.h.WriteBarrier(arr)
		return nil
	}
	if m, ok := tgtObject[*value.MapObj](tgt); ok {
		key, ok := mapKeyOf(idxVal)
		if !ok {
			return vmerrors.Type(vm.curModulePath, line, idxVal.Stringify(), "map key must be an integer or string")
		}
		m.Set(key, val)
		vm.h.WriteBarrier(m)
		return nil
	}
	return vmerrors.Type(vm.curModulePath, line, tgt.Stringify(), "cannot index into %s", tgt.TypeName())
}

func (vm *VM) execLen(instr bytecode.Instr, line int) (value.Value, error) {
	b := instr.B()
	tgt := vm.reg(b)
	if arr, ok := tgtObject[*value.ArrayObj](tgt); ok {
		return value.Int(int64(arr.Count())), nil
	}
	if m, ok := tgtObject[*value.MapObj](tgt); ok {
		return value.Int(int64(m.Count())), nil
	}
	if s, ok := tgtObject[*value.StringObj](tgt); ok {
		return value.Int(int64(s.Len)), nil
	}
	return value.Nil, vmerrors.Type(vm.curModulePath, line, tgt.Stringify(), "%s has no length", tgt.TypeName())
}

// execStructDef materializes a struct type from its compiled name+field
// constants and binds it under its own name as a module global; there is
// no result register, the binding itself is the opcode's effect.
func (vm *VM) execStructDef(instr bytecode.Instr) {
	fieldCount := int(instr.A())
	bx := int(instr.Bx())
	name := vm.constStr(bx)
	fields := make([]*value.StringObj, fieldCount)
	for i := 0; i < fieldCount; i++ {
		fields[i] = vm.constStr(bx + 1 + i)
	}
	def := &value.StructDefObj{Name: string(name.Data), Fields: fields}
	vm.h.Allocate(def, 32+16*fieldCount)
	env.DefineGlobal(vm.curModuleEnv, name, value.Obj(def))
	vm.h.WriteBarrier(vm.curModuleEnv)
}
