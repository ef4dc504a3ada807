package value

// InternThreshold is the maximum byte length of a string eligible for
// interning. Strings longer than this live only on the heap, uncollapsed,
// so transient concatenation results don't pin a pool entry forever.
const InternThreshold = 256

// StringObj is an immutable byte sequence with a precomputed hash and
// length. Immutability means a StringObj's Data must never be mutated
// after construction — operations that "change" a string (e.g.
// concatenation) always allocate a new StringObj.
type StringObj struct {
	ObjectHeader
	Data []byte
	Hash uint64
	Len  int
}

func (s *StringObj) Header() *ObjectHeader { return &s.ObjectHeader }

// NewString constructs a StringObj. Callers that want the interning and
// collectibility guarantees should go through intern.Interner instead of
// calling this directly for short strings; NewString is the
// primitive the heap/interner build on, and is also what long strings
// (> InternThreshold) use directly since they are never pooled.
func NewString(data []byte, hash uint64) *StringObj {
	return &StringObj{Data: data, Hash: hash, Len: len(data)}
}
