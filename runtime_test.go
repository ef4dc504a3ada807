package unnarize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gtkrshnaaa/unnarize/ast"
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vm"
)

func litInt(line int, v int64) *ast.Literal {
	l := ast.NewLiteral(line, ast.LitInt)
	l.Int = v
	return l
}

func litStr(line int, v string) *ast.Literal {
	l := ast.NewLiteral(line, ast.LitString)
	l.Str = v
	return l
}

func block(line int, stmts ...ast.Stmt) *ast.Block {
	b := ast.NewBlock(line)
	b.Stmts = stmts
	return b
}

// fibModule builds, by hand, the AST a frontend would produce for:
//
//	function fib(n) {
//	    if (n < 2) { return n; }
//	    return fib(n - 1) + fib(n - 2);
//	}
//	return fib(10);
func fibModule() *ast.Block {
	n := ast.NewVar(1, "n")
	fibDecl := &ast.FunctionDecl{
		Name:   "fib",
		Params: []string{"n"},
		Body: block(2,
			&ast.If{
				Cond: &ast.Binary{Op: "<", Left: n, Right: litInt(2, 2)},
				Then: block(2, &ast.Return{Value: ast.NewVar(2, "n")}),
			},
			&ast.Return{Value: &ast.Binary{
				Op: "+",
				Left: &ast.Call{
					Callee: ast.NewVar(3, "fib"),
					Args:   []ast.Expr{&ast.Binary{Op: "-", Left: ast.NewVar(3, "n"), Right: litInt(3, 1)}},
				},
				Right: &ast.Call{
					Callee: ast.NewVar(3, "fib"),
					Args:   []ast.Expr{&ast.Binary{Op: "-", Left: ast.NewVar(3, "n"), Right: litInt(3, 2)}},
				},
			}},
		),
	}
	call := &ast.Call{Callee: ast.NewVar(5, "fib"), Args: []ast.Expr{litInt(5, 10)}}
	return block(1, fibDecl, &ast.Return{Value: call})
}

func TestExecuteRecursiveFibonacci(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(fibModule(), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 55 {
		t.Errorf("fib(10) = %#v, want Int(55)", got)
	}
}

// structModule builds:
//
//	struct Point { x, y }
//	var p = Point(3, 4);
//	return p.x + p.y;
func structModule() *ast.Block {
	decl := &ast.StructDecl{Name: "Point", Fields: []string{"x", "y"}}
	ctor := &ast.Call{
		Callee: ast.NewVar(2, "Point"),
		Args:   []ast.Expr{litInt(2, 3), litInt(2, 4)},
	}
	varDecl := &ast.VarDecl{Name: "p", Init: ctor}
	ret := &ast.Return{Value: &ast.Binary{
		Op:   "+",
		Left: &ast.PropertyGet{Object: ast.NewVar(3, "p"), Field: "x"},
		Right: &ast.PropertyGet{
			Object: ast.NewVar(3, "p"),
			Field:  "y",
		},
	}}
	return block(1, decl, varDecl, ret)
}

func TestExecuteStructConstructionAndFieldAccess(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(structModule(), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 7 {
		t.Errorf("p.x + p.y = %#v, want Int(7)", got)
	}
}

// asyncModule builds:
//
//	async function greet() { return "ok"; }
//	var f = greet();
//	return await f;
func asyncModule() *ast.Block {
	greet := &ast.FunctionDecl{
		Name:  "greet",
		Async: true,
		Body:  block(1, &ast.Return{Value: litStr(1, "ok")}),
	}
	call := &ast.VarDecl{Name: "f", Init: &ast.Call{Callee: ast.NewVar(2, "greet")}}
	ret := &ast.Return{Value: &ast.Await{Operand: ast.NewVar(3, "f")}}
	return block(1, greet, call, ret)
}

func TestExecuteAsyncAwaitRoundTrip(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(asyncModule(), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got.Stringify() != "ok" {
		t.Errorf("await greet() = %q, want \"ok\"", got.Stringify())
	}
}

// undefinedModule declares a struct with only field x and reads field y.
func undefinedModule() *ast.Block {
	decl := &ast.StructDecl{Name: "P", Fields: []string{"x"}}
	ctor := &ast.Call{Callee: ast.NewVar(2, "P"), Args: []ast.Expr{litInt(2, 1)}}
	varDecl := &ast.VarDecl{Name: "p", Init: ctor}
	ret := &ast.Return{Value: &ast.PropertyGet{Object: ast.NewVar(3, "p"), Field: "y"}}
	return block(1, decl, varDecl, ret)
}

func TestUndefinedModeSilentReturnsNil(t *testing.T) {
	rt := NewRuntime() // default: UndefinedSilent
	got, err := rt.Execute(undefinedModule(), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsNil() {
		t.Errorf("missing field under UndefinedSilent = %#v, want Nil", got)
	}
}

func TestUndefinedModeStrictErrors(t *testing.T) {
	rt := NewRuntime(WithUndefinedMode(vm.UndefinedStrict))
	_, err := rt.Execute(undefinedModule(), "<test>")
	if err == nil {
		t.Fatal("missing field under UndefinedStrict should be a fatal error")
	}
}

// moduleScopeCaptureModule builds:
//
//	var c = 0;
//	function inc() { c = c + 1; return c; }
//	return inc();
//
// A function body referencing a name that isn't one of its own locals or
// parameters resolves through GETGLOBAL/SETGLOBAL; for that to work for a
// module-level `var`, the declaration itself must land in the module's
// Environment (DEFGLOBAL), not a module-chunk-local register.
func moduleScopeCaptureModule() *ast.Block {
	varDecl := &ast.VarDecl{Name: "c", Init: litInt(1, 0)}
	inc := &ast.FunctionDecl{
		Name: "inc",
		Body: block(2,
			&ast.Assign{Name: "c", Op: "=", Value: &ast.Binary{Op: "+", Left: ast.NewVar(2, "c"), Right: litInt(2, 1)}},
			&ast.Return{Value: ast.NewVar(2, "c")},
		),
	}
	call := &ast.Call{Callee: ast.NewVar(3, "inc")}
	return block(1, varDecl, inc, &ast.Return{Value: call})
}

func TestExecuteFunctionCapturesModuleScopeVar(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(moduleScopeCaptureModule(), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 1 {
		t.Errorf("inc() = %#v, want Int(1)", got)
	}
}

// counterModule is imported by TestImportedModuleVarIsVisibleAsMember: it
// declares a bare top-level var with no function or struct wrapping it.
func counterModule() *ast.Block {
	return block(1, &ast.VarDecl{Name: "count", Init: litInt(1, 41)})
}

// importerModule builds:
//
//	import "counter.un" as counter;
//	return counter.count + 1;
func importerModule() *ast.Block {
	imp := &ast.Import{Path: "counter.un", Alias: "counter"}
	ret := &ast.Return{Value: &ast.Binary{
		Op:    "+",
		Left:  &ast.PropertyGet{Object: ast.NewVar(2, "counter"), Field: "count"},
		Right: litInt(2, 1),
	}}
	return block(1, imp, ret)
}

// multiFrontend resolves several fixed canonical paths to fixed ASTs,
// mirroring loader_test.go's fakeFrontend but keyed by a map so a test can
// exercise an IMPORT that resolves to a sibling fixture.
type multiFrontend struct {
	modules map[string]*ast.Block
}

func (f *multiFrontend) Parse(canonicalPath string) (*ast.Block, error) {
	b, ok := f.modules[canonicalPath]
	if !ok {
		return nil, fmt.Errorf("no fixture for %q", canonicalPath)
	}
	return b, nil
}

// TestImportedModuleVarIsVisibleAsMember checks module isolation end to
// end: a top-level `var` in the imported module must be readable through
// the importer's alias, via the same DEFGLOBAL/GETPROP path a top-level
// function or struct already used.
func TestImportedModuleVarIsVisibleAsMember(t *testing.T) {
	entryPath, counterPath := "/pkg/entry.un", "/pkg/counter.un"
	fe := &multiFrontend{modules: map[string]*ast.Block{counterPath: counterModule()}}
	rt := NewRuntime(WithFrontend(fe))

	got, err := rt.Execute(importerModule(), entryPath)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 42 {
		t.Errorf("counter.count + 1 = %#v, want Int(42)", got)
	}
}

// fakeFrontend resolves a single canonical path to a fixed AST, enough to
// exercise RunFile's absolute-path handling without a real lexer/parser.
type fakeFrontend struct {
	path string
	body *ast.Block
}

func (f *fakeFrontend) Parse(canonicalPath string) (*ast.Block, error) {
	abs, err := filepath.Abs(f.path)
	if err != nil {
		return nil, err
	}
	if canonicalPath != abs {
		return nil, os.ErrNotExist
	}
	return f.body, nil
}

func TestRunFileResolvesRelativePathOnce(t *testing.T) {
	fe := &fakeFrontend{path: "testdata/entry.un", body: fibModule()}
	rt := NewRuntime(WithFrontend(fe))

	got, err := rt.RunFile(fe.path)
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}
	if got.AsObject() == nil {
		t.Fatal("RunFile should return the entry module as a value")
	}
}

func TestRunFileWithoutFrontendErrors(t *testing.T) {
	rt := NewRuntime()
	if _, err := rt.RunFile("whatever.un"); err == nil {
		t.Fatal("RunFile with no configured Frontend should error")
	}
}

// nativeCallModule builds: return double(21);
func nativeCallModule() *ast.Block {
	call := &ast.Call{Callee: ast.NewVar(1, "double"), Args: []ast.Expr{litInt(1, 21)}}
	return block(1, &ast.Return{Value: call})
}

func TestRegisterNativeIsCallableFromEveryModule(t *testing.T) {
	rt := NewRuntime()
	rt.RegisterNative("double", func(args []value.Value) (value.Value, error) {
		return value.Int(args[0].AsInt() * 2), nil
	}, 1)

	got, err := rt.Execute(nativeCallModule(), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 42 {
		t.Errorf("double(21) = %#v, want Int(42)", got)
	}
}

// printSumModule builds:
//
//	var x = 10;
//	var y = 20;
//	print(x + y);
func printSumModule() *ast.Block {
	return block(1,
		&ast.VarDecl{Name: "x", Init: litInt(1, 10)},
		&ast.VarDecl{Name: "y", Init: litInt(2, 20)},
		&ast.ExprStmt{X: &ast.Call{
			Callee: ast.NewVar(3, "print"),
			Args:   []ast.Expr{&ast.Binary{Op: "+", Left: ast.NewVar(3, "x"), Right: ast.NewVar(3, "y")}},
		}},
	)
}

func TestPrintWritesStringifiedValueAndNewline(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRuntime(WithStdout(&buf))
	if _, err := rt.Execute(printSumModule(), "<test>"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := buf.String(); got != "30\n" {
		t.Errorf("output = %q, want \"30\\n\"", got)
	}
}

// arrayLoopModule builds:
//
//	var a = [];
//	for (var i = 0; i < 3; i = i + 1) { push(a, i); }
//	print(length(a));
//	print(a[2]);
func arrayLoopModule() *ast.Block {
	aVar := func(line int) *ast.Var { return ast.NewVar(line, "a") }
	loop := &ast.For{
		Init: &ast.VarDecl{Name: "i", Init: litInt(2, 0)},
		Cond: &ast.Binary{Op: "<", Left: ast.NewVar(2, "i"), Right: litInt(2, 3)},
		Incr: &ast.Assign{Name: "i", Op: "=", Value: &ast.Binary{Op: "+", Left: ast.NewVar(2, "i"), Right: litInt(2, 1)}},
		Body: block(2, &ast.ExprStmt{X: &ast.Call{
			Callee: ast.NewVar(2, "push"),
			Args:   []ast.Expr{aVar(2), ast.NewVar(2, "i")},
		}}),
	}
	return block(1,
		&ast.VarDecl{Name: "a", Init: &ast.ArrayLit{}},
		loop,
		&ast.ExprStmt{X: &ast.Call{
			Callee: ast.NewVar(3, "print"),
			Args:   []ast.Expr{&ast.Call{Callee: ast.NewVar(3, "length"), Args: []ast.Expr{aVar(3)}}},
		}},
		&ast.ExprStmt{X: &ast.Call{
			Callee: ast.NewVar(4, "print"),
			Args:   []ast.Expr{&ast.IndexGet{Target: aVar(4), Index: litInt(4, 2)}},
		}},
	)
}

func TestForLoopPushAndIndexing(t *testing.T) {
	var buf bytes.Buffer
	rt := NewRuntime(WithStdout(&buf))
	if _, err := rt.Execute(arrayLoopModule(), "<test>"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := buf.String(); got != "3\n2\n" {
		t.Errorf("output = %q, want \"3\\n2\\n\"", got)
	}
}

// whileCountModule builds:
//
//	function count(n) {
//	    var i = 0;
//	    while (i < n) { i = i + 1; }
//	    return i;
//	}
//	return count(<n>);
func whileCountModule(n int64) *ast.Block {
	decl := &ast.FunctionDecl{
		Name:   "count",
		Params: []string{"n"},
		Body: block(2,
			&ast.VarDecl{Name: "i", Init: litInt(2, 0)},
			&ast.While{
				Cond: &ast.Binary{Op: "<", Left: ast.NewVar(3, "i"), Right: ast.NewVar(3, "n")},
				Body: block(3, &ast.Assign{Name: "i", Op: "=", Value: &ast.Binary{Op: "+", Left: ast.NewVar(3, "i"), Right: litInt(3, 1)}}),
			},
			&ast.Return{Value: ast.NewVar(4, "i")},
		),
	}
	call := &ast.Call{Callee: ast.NewVar(6, "count"), Args: []ast.Expr{litInt(6, n)}}
	return block(1, decl, &ast.Return{Value: call})
}

func TestWhileBodyRunsZeroTimesOnFalseyEntry(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(whileCountModule(0), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 0 {
		t.Errorf("count(0) = %#v, want Int(0): a falsey condition on entry must skip the body entirely", got)
	}
}

func TestWhileBodyRunsUntilConditionFalsey(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(whileCountModule(5), "<test>")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !got.IsInt() || got.AsInt() != 5 {
		t.Errorf("count(5) = %#v, want Int(5)", got)
	}
}

// shortCircuitModule builds:
//
//	function boom() { return missing_global; }
//	return false && boom();
//
// boom() would raise a NameError if evaluated; && must skip it.
func shortCircuitModule() *ast.Block {
	boom := &ast.FunctionDecl{
		Name: "boom",
		Body: block(1, &ast.Return{Value: ast.NewVar(1, "missing_global")}),
	}
	falseLit := ast.NewLiteral(2, ast.LitFalse)
	andExpr := &ast.Binary{Op: "&&", Left: falseLit, Right: &ast.Call{Callee: ast.NewVar(2, "boom")}}
	return block(1, boom, &ast.Return{Value: andExpr})
}

func TestLogicalAndShortCircuits(t *testing.T) {
	rt := NewRuntime()
	got, err := rt.Execute(shortCircuitModule(), "<test>")
	if err != nil {
		t.Fatalf("false && boom() should never evaluate boom(): %v", err)
	}
	if got.Truthy() {
		t.Errorf("false && boom() = %#v, want a falsey result", got)
	}
}
