package value

// NativeFunc is the host-language callable a native Function wraps: it
// receives the raw argument slice and returns a Value or an error. The
// ABI this stands in for is "(VM*, args_pointer, arg_count)"; args is the
// Go-idiomatic equivalent of the pointer+count pair. No VM handle is
// passed: the vm package calls it with the arguments only, and value must
// not import vm (that would cycle: vm already imports value).
type NativeFunc func(args []Value) (Value, error)

// FunctionObj is either a bytecode function (Chunk + parameter arity +
// defining module environment + optional module path for relative
// imports) or a native function (host code pointer + arity).
type FunctionObj struct {
	ObjectHeader
	Name     string
	Arity    int
	IsNative bool

	// Bytecode function fields.
	Chunk      *Chunk
	ModuleEnv  *EnvironmentObj
	ModulePath string
	IsAsync    bool

	// Native function fields.
	Native NativeFunc
}

func (f *FunctionObj) Header() *ObjectHeader { return &f.ObjectHeader }

func NewBytecodeFunction(name string, arity int, chunk *Chunk, modEnv *EnvironmentObj, modulePath string) *FunctionObj {
	return &FunctionObj{
		Name:       name,
		Arity:      arity,
		Chunk:      chunk,
		ModuleEnv:  modEnv,
		ModulePath: modulePath,
	}
}

func NewNativeFunction(name string, arity int, fn NativeFunc) *FunctionObj {
	return &FunctionObj{Name: name, Arity: arity, IsNative: true, Native: fn}
}
