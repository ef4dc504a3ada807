// Package bytecode defines the instruction set and word encoding for the
// Unnarize register VM. Every instruction is a single 32-bit word; this
// package only deals in raw uint32s and opcode constants — it never touches
// a Value, so the compiler and vm packages are the ones that give meaning
// to operands.
package bytecode

// Op identifies an instruction's operation.
type Op uint8

const (
	// Data move
	OpMove Op = iota
	OpLoadK
	OpLoadI
	OpLoadNil
	OpLoadTrue
	OpLoadFalse

	// Globals
	OpGetGlobal
	OpSetGlobal
	OpDefGlobal

	// Arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Comparison
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe

	// Logical
	OpNot

	// Control flow
	OpJmp
	OpJmpFalse
	OpJmpTrue
	OpLoop

	// Calls
	OpCall
	OpReturn
	OpReturnNil

	// Properties / indexing
	OpGetProp
	OpSetProp
	OpGetIdx
	OpSetIdx

	// Object creation
	OpNewArray
	OpNewMap
	OpStructDef

	// Array builtins
	OpPush
	OpPop
	OpLen

	// Import
	OpImport

	// Async
	OpAsync
	OpAwait

	// Misc
	OpPrint
	OpHalt
	OpNop

	opCount
)

var opNames = [opCount]string{
	OpMove: "MOVE", OpLoadK: "LOADK", OpLoadI: "LOADI", OpLoadNil: "LOADNIL",
	OpLoadTrue: "LOADTRUE", OpLoadFalse: "LOADFALSE",
	OpGetGlobal: "GETGLOBAL", OpSetGlobal: "SETGLOBAL", OpDefGlobal: "DEFGLOBAL",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpNeg: "NEG",
	OpLt: "LT", OpLe: "LE", OpGt: "GT", OpGe: "GE", OpEq: "EQ", OpNe: "NE",
	OpNot:        "NOT",
	OpJmp:        "JMP",
	OpJmpFalse:   "JMPF",
	OpJmpTrue:    "JMPT",
	OpLoop:       "LOOP",
	OpCall:       "CALL",
	OpReturn:     "RETURN",
	OpReturnNil:  "RETURNNIL",
	OpGetProp:    "GETPROP",
	OpSetProp:    "SETPROP",
	OpGetIdx:     "GETIDX",
	OpSetIdx:     "SETIDX",
	OpNewArray:   "NEWARRAY",
	OpNewMap:     "NEWMAP",
	OpStructDef:  "STRUCTDEF",
	OpPush:       "PUSH",
	OpPop:        "POP",
	OpLen:        "LEN",
	OpImport:     "IMPORT",
	OpAsync:      "ASYNC",
	OpAwait:      "AWAIT",
	OpPrint:      "PRINT",
	OpHalt:       "HALT",
	OpNop:        "NOP",
}

// String renders the mnemonic for an opcode, used by the disassembler and
// by diagnostics that name the failing instruction.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}

// SBxBias is added to a signed 16-bit operand before it is packed into the
// unsigned Bx field, and subtracted back out on decode (the same trick
// that lets an unsigned field carry a signed, biased value without a
// dedicated sign bit). sBx therefore ranges over [-32768, 32767].
const SBxBias = 1 << 15

// SBx24Bias is the equivalent bias for the wider 24-bit signed field used
// by unconditional jumps and loop back-edges, ranging over
// [-8388608, 8388607].
const SBx24Bias = 1 << 23
