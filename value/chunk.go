package value

import "github.com/gtkrshnaaa/unnarize/bytecode"

// Chunk is one function's compiled bytecode plus its constant pool and
// line table. Once compiled, a Chunk is immutable for Code and Constants;
// Lines is append-only during compilation and read-only afterward. Chunk
// lives in the value package, not a separate bytecode-data package,
// because a Function value owns its Chunk directly and Constants holds
// Values — keeping the two together avoids an import cycle between the
// value and bytecode-data layers. Pure instruction encoding (opcodes,
// word packing) stays in the standalone bytecode package, which both
// this package and the compiler/vm import.
type Chunk struct {
	Code      []bytecode.Instr
	Constants []Value
	Lines     []int32
	MaxRegs   int
	Name      string
}

// NewChunk returns an empty chunk ready for the compiler to append to.
func NewChunk(name string) *Chunk {
	return &Chunk{Name: name}
}

// Emit appends an instruction and its source line, returning the index of
// the emitted instruction (used by the compiler to remember jump sites for
// later patching).
func (c *Chunk) Emit(instr bytecode.Instr, line int) int {
	c.Code = append(c.Code, instr)
	c.Lines = append(c.Lines, int32(line))
	return len(c.Code) - 1
}

// Patch overwrites a previously emitted instruction in place — used to
// resolve a forward jump once its target offset is known.
func (c *Chunk) Patch(at int, instr bytecode.Instr) {
	c.Code[at] = instr
}

// AddConstant appends a constant and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// LineFor returns the source line recorded for an instruction index, or 0
// if out of range, for diagnostics.
func (c *Chunk) LineFor(ip int) int {
	if ip < 0 || ip >= len(c.Lines) {
		return 0
	}
	return int(c.Lines[ip])
}
