package value

// EnvironmentObj holds two fixed-size open-chained hash tables (variable
// bindings, function bindings) keyed by interned-string identity, plus a
// parent link. A module's Environment is exclusively owned by its Module;
// functions defined in the module hold a non-owning back-reference to it
// for global-lookup resolution.
//
// Keys are interned strings; lookups pick a bucket from the string's
// precomputed content hash and probe the linked chain with pointer
// equality, falling back
// to byte comparison when cross-module string identity isn't guaranteed
// — e.g. a name bound before the program's interner had seen
// it yet, or a binding installed by native library registration using a
// StringObj the interner never pooled.
type EnvironmentObj struct {
	ObjectHeader
	Parent    *EnvironmentObj
	Name      string // module/display name, for diagnostics
	variables []*envBucket
	functions []*envBucket
}

type envEntry struct {
	key   *StringObj
	value Value
	next  *envEntry
}

type envBucket = envEntry // bucket chain head is just another entry node

const envTableSize = 32

func (e *EnvironmentObj) Header() *ObjectHeader { return &e.ObjectHeader }

func NewEnvironment(name string, parent *EnvironmentObj) *EnvironmentObj {
	return &EnvironmentObj{
		Name:      name,
		Parent:    parent,
		variables: make([]*envBucket, envTableSize),
		functions: make([]*envBucket, envTableSize),
	}
}

func bucketSlot(key *StringObj, size int) int {
	return int(key.Hash % uint64(size))
}

func lookupTable(table []*envBucket, key *StringObj) (Value, bool) {
	slot := bucketSlot(key, len(table))
	for e := table[slot]; e != nil; e = e.next {
		if e.key == key || (e.key.Hash == key.Hash && string(e.key.Data) == string(key.Data)) {
			return e.value, true
		}
	}
	return Nil, false
}

func insertTable(table []*envBucket, key *StringObj, v Value) {
	slot := bucketSlot(key, len(table))
	for e := table[slot]; e != nil; e = e.next {
		if e.key == key || (e.key.Hash == key.Hash && string(e.key.Data) == string(key.Data)) {
			e.value = v
			return
		}
	}
	table[slot] = &envEntry{key: key, value: v, next: table[slot]}
}

// GetVariable looks up a name in the variable table, walking the parent
// chain (a module environment's parent, when set, is the shared host
// environment of registered natives; closures only capture module-level
// bindings, never another frame's locals).
func (e *EnvironmentObj) GetVariable(key *StringObj) (Value, bool) {
	for env := e; env != nil; env = env.Parent {
		if v, ok := lookupTable(env.variables, key); ok {
			return v, true
		}
	}
	return Nil, false
}

// SetVariable updates an existing binding in whichever scope in the chain
// owns it, or returns false if the name isn't bound anywhere.
func (e *EnvironmentObj) SetVariable(key *StringObj, v Value) bool {
	for env := e; env != nil; env = env.Parent {
		slot := bucketSlot(key, len(env.variables))
		for entry := env.variables[slot]; entry != nil; entry = entry.next {
			if entry.key == key || (entry.key.Hash == key.Hash && string(entry.key.Data) == string(key.Data)) {
				entry.value = v
				return true
			}
		}
	}
	return false
}

// DefineVariable inserts or updates a binding in this environment's own
// table (does not walk the parent chain).
func (e *EnvironmentObj) DefineVariable(key *StringObj, v Value) {
	insertTable(e.variables, key, v)
}

func (e *EnvironmentObj) GetFunction(key *StringObj) (Value, bool) {
	for env := e; env != nil; env = env.Parent {
		if v, ok := lookupTable(env.functions, key); ok {
			return v, true
		}
	}
	return Nil, false
}

func (e *EnvironmentObj) DefineFunction(key *StringObj, v Value) {
	insertTable(e.functions, key, v)
}

// EachVariable calls fn for every binding directly owned by this
// environment (not its parents) — used by the GC trace phase.
func (e *EnvironmentObj) EachVariable(fn func(key *StringObj, v Value)) {
	for _, head := range e.variables {
		for entry := head; entry != nil; entry = entry.next {
			fn(entry.key, entry.value)
		}
	}
}

func (e *EnvironmentObj) EachFunction(fn func(key *StringObj, v Value)) {
	for _, head := range e.functions {
		for entry := head; entry != nil; entry = entry.next {
			fn(entry.key, entry.value)
		}
	}
}
