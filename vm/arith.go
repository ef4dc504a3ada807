package vm

import (
	"github.com/gtkrshnaaa/unnarize/value"
	"github.com/gtkrshnaaa/unnarize/vmerrors"
)

// stringOperand renders a non-string operand for `+` concatenation using
// the same fixed conversion table as Value.Stringify.
func stringOperand(v value.Value) string { return v.Stringify() }

func (vm *VM) isString(v value.Value) (*value.StringObj, bool) {
	if !v.IsObject() {
		return nil, false
	}
	s, ok := v.AsObject().(*value.StringObj)
	return s, ok
}

// arith evaluates a polymorphic arithmetic opcode: int op int stays int
// when both operands are int; any float operand promotes the whole
// operation to float; `+` additionally concatenates whenever either
// operand is a string.
func (vm *VM) arith(op byte, a, b value.Value, line int) (value.Value, error) {
	if op == '+' {
		if sa, ok := vm.isString(a); ok {
			return value.Obj(vm.h.NewString(append(append([]byte{}, sa.Data...), stringOperand(b)...))), nil
		}
		if sb, ok := vm.isString(b); ok {
			return value.Obj(vm.h.NewString(append([]byte(stringOperand(a)), sb.Data...))), nil
		}
	}
	if !a.IsNumber() || !b.IsNumber() {
		return value.Nil, vmerrors.Type(vm.curModulePath, line, a.Stringify(), "unsupported operand types for %q: %s and %s", string(op), a.TypeName(), b.TypeName())
	}
	if a.IsInt() && b.IsInt() {
		x, y := a.AsInt(), b.AsInt()
		switch op {
		case '+':
			return value.Int(x + y), nil
		case '-':
			return value.Int(x - y), nil
		case '*':
			return value.Int(x * y), nil
		case '/':
			if y == 0 {
				return value.Nil, vmerrors.Range(vm.curModulePath, line, "division by zero")
			}
			return value.Int(x / y), nil
		case '%':
			if y == 0 {
				return value.Nil, vmerrors.Range(vm.curModulePath, line, "modulo by zero")
			}
			return value.Int(x % y), nil
		}
	}
	x, y := a.AsFloat64(), b.AsFloat64()
	switch op {
	case '+':
		return value.Float(x + y), nil
	case '-':
		return value.Float(x - y), nil
	case '*':
		return value.Float(x * y), nil
	case '/':
		return value.Float(x / y), nil
	case '%':
		return value.Nil, vmerrors.Type(vm.curModulePath, line, "", "%% requires integer operands")
	}
	return value.Nil, vmerrors.Type(vm.curModulePath, line, "", "unreachable arithmetic operator %q", string(op))
}

func (vm *VM) compare(op string, a, b value.Value, line int) (value.Value, error) {
	if op == "==" {
		return value.Bool(a.Equals(b)), nil
	}
	if op == "!=" {
		return value.Bool(!a.Equals(b)), nil
	}
	if !a.IsNumber() || !b.IsNumber() {
		return value.Nil, vmerrors.Type(vm.curModulePath, line, a.Stringify(), "unsupported operand types for %q: %s and %s", op, a.TypeName(), b.TypeName())
	}
	x, y := a.AsFloat64(), b.AsFloat64()
	var r bool
	switch op {
	case "<":
		r = x < y
	case "<=":
		r = x <= y
	case ">":
		r = x > y
	case ">=":
		r = x >= y
	}
	return value.Bool(r), nil
}
