// Package ast defines the node shapes the compiler consumes. The lexer
// and parser that produce these trees from source text are a separate
// concern; this package only fixes the node shapes, so any frontend —
// including hand-built trees, as the tests in this repo do — can hand
// the compiler a tree it understands.
package ast

// Node is the common interface for every AST node; Line reports the
// source line it came from, used by the compiler to populate the chunk's
// line table and, transitively, every runtime diagnostic.
type Node interface {
	Line() int
}

type pos struct{ LineNo int }

func (p pos) Line() int { return p.LineNo }

// Expr is any node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is any node that executes for effect.
type Stmt interface {
	Node
	stmtNode()
}

type exprBase struct{ pos }

func (exprBase) exprNode() {}

type stmtBase struct{ pos }

func (stmtBase) stmtNode() {}

// LitKind tags a Literal's token kind.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitString
	LitTrue
	LitFalse
	LitNil
)

// Literal is a constant value in source.
type Literal struct {
	exprBase
	Kind LitKind
	Raw  string
	// Int/Float/Str hold the already-decoded value where applicable, so
	// the compiler never has to re-run strconv or unescape a string
	// during lowering; the frontend that builds this tree is responsible
	// for populating the field matching Kind (Raw still carries the
	// literal's original source text for diagnostics).
	Int   int64
	Float float64
	Str   string
}

func NewLiteral(line int, kind LitKind) *Literal {
	return &Literal{exprBase: exprBase{pos{line}}, Kind: kind}
}

// Var is a bare identifier reference.
type Var struct {
	exprBase
	Name string
}

func NewVar(line int, name string) *Var { return &Var{exprBase{pos{line}}, name} }

// Unary is a prefix operator application: "-" or "!".
type Unary struct {
	exprBase
	Op      string
	Operand Expr
}

// Binary is an infix operator application: arithmetic (+ - * / %),
// comparison (== != < <= > >=), or logical (&& ||).
type Binary struct {
	exprBase
	Op          string
	Left, Right Expr
}

// ArrayLit is an array literal.
type ArrayLit struct {
	exprBase
	Elements []Expr
}

// IndexGet is `target[index]`.
type IndexGet struct {
	exprBase
	Target, Index Expr
}

// PropertyGet is `object.field`.
type PropertyGet struct {
	exprBase
	Object Expr
	Field  string
}

// Call is a function or struct-constructor invocation.
type Call struct {
	exprBase
	Callee Expr
	Args   []Expr
}

// Await is the `await` operand expression.
type Await struct {
	exprBase
	Operand Expr
}

// Block is a sequence of statements.
type Block struct {
	stmtBase
	Stmts []Stmt
}

func NewBlock(line int) *Block { return &Block{stmtBase: stmtBase{pos{line}}} }

// ExprStmt wraps an expression evaluated for its side effect (e.g. a bare
// call) — the usual expression-statement production every
// statement-oriented grammar needs somewhere in its tree.
type ExprStmt struct {
	stmtBase
	X Expr
}

// VarDecl is `var name = init;` with init optional.
type VarDecl struct {
	stmtBase
	Name string
	Init Expr // nil if no initializer
}

// Assign is `name op value;` where op is one of = += -= *= /=.
type Assign struct {
	stmtBase
	Name  string
	Op    string
	Value Expr
}

// IndexAssign is `target[index] = value;`.
type IndexAssign struct {
	stmtBase
	Target, Index, Value Expr
}

// PropertyAssign is `object.name = value;`.
type PropertyAssign struct {
	stmtBase
	Object Expr
	Name   string
	Value  Expr
}

// If is `if (cond) then [else else]`; an `else if` chain is represented
// as a single-statement Block holding another If, the usual desugaring.
type If struct {
	stmtBase
	Cond Expr
	Then *Block
	Else *Block // nil if absent
}

// While is `while (cond) body`.
type While struct {
	stmtBase
	Cond Expr
	Body *Block
}

// For is `for (init; cond; incr) body`, each clause optional.
type For struct {
	stmtBase
	Init Stmt // nil if absent
	Cond Expr // nil if absent
	Incr Stmt // nil if absent
	Body *Block
}

// Foreach is `foreach (iter in collection) body`.
type Foreach struct {
	stmtBase
	Iter       string
	Collection Expr
	Body       *Block
}

// FunctionDecl declares a named function. Async is carried as a flag
// rather than a distinct node kind: the ASYNC opcode applies at the call
// site, not the declaration, but compiling a call to an async-declared
// function still needs to know ahead of time to emit ASYNC instead of
// CALL, so the declaration remembers it here.
type FunctionDecl struct {
	stmtBase
	Name   string
	Params []string
	Body   *Block
	Async  bool
}

// Return is `return [value];`.
type Return struct {
	stmtBase
	Value Expr // nil if bare return
}

// StructDecl declares a struct type and its ordered field names.
type StructDecl struct {
	stmtBase
	Name   string
	Fields []string
}

// Import is `import "path" [as alias]`.
type Import struct {
	stmtBase
	Path  string
	Alias string
}
