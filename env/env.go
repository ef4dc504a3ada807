// Package env implements global-binding operations — DefineGlobal,
// GetGlobal, SetGlobal, DefineNative — over a value.EnvironmentObj, keyed
// by interned-string pointer identity.
package env

import (
	"fmt"

	"github.com/gtkrshnaaa/unnarize/heap"
	"github.com/gtkrshnaaa/unnarize/value"
)

// ErrUndefined is returned by GetGlobal for a name with no binding; the
// vm layer wraps it into a NameError with source position.
type ErrUndefined struct{ Name string }

func (e *ErrUndefined) Error() string { return fmt.Sprintf("undefined name %q", e.Name) }

// DefineGlobal inserts or updates a binding in env's own variable table.
// Callers holding a heap handle mid-GC-cycle
// must also invoke heap.WriteBarrier(env) after this, which the vm
// package's DEFGLOBAL/SETGLOBAL opcode handlers do.
func DefineGlobal(env *value.EnvironmentObj, name *value.StringObj, v value.Value) {
	env.DefineVariable(name, v)
}

// GetGlobal looks up name, walking env's parent chain; undefined is a
// runtime error.
func GetGlobal(env *value.EnvironmentObj, name *value.StringObj) (value.Value, error) {
	v, ok := env.GetVariable(name)
	if !ok {
		return value.Nil, &ErrUndefined{Name: string(name.Data)}
	}
	return v, nil
}

// SetGlobal updates an existing binding anywhere in env's parent chain,
// returning ErrUndefined if the name isn't bound anywhere (matching the
// Runtime's "SETGLOBAL" opcode, which only ever targets names already
// introduced by a prior DEFGLOBAL in the same or an enclosing scope).
func SetGlobal(env *value.EnvironmentObj, name *value.StringObj, v value.Value) error {
	if !env.SetVariable(name, v) {
		return &ErrUndefined{Name: string(name.Data)}
	}
	return nil
}

// DefineNative registers a native function under name: it allocates a
// permanent value.FunctionObj wrapping fn and mirrors it into env's
// variable bindings, so the name is both invocable and usable as a
// first-class value.
func DefineNative(h *heap.Heap, env *value.EnvironmentObj, name *value.StringObj, fn value.NativeFunc, arity int) *value.FunctionObj {
	f := value.NewNativeFunction(string(name.Data), arity, fn)
	h.RegisterPermanent(f)
	env.DefineFunction(name, value.Obj(f))
	env.DefineVariable(name, value.Obj(f))
	return f
}
