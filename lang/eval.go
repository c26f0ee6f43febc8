package lang

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Evaluation errors.
var (
	// ErrStepBudget is returned when a reduction exceeds its step limit.
	ErrStepBudget = errors.New("lang: step budget exceeded")
	// ErrUnboundSymbol is returned for a symbol with no binding.
	ErrUnboundSymbol = errors.New("lang: unbound symbol")
	// ErrNotApplicable is returned when a non-function is applied.
	ErrNotApplicable = errors.New("lang: value is not applicable")
	// ErrBadArity is returned on an argument count mismatch.
	ErrBadArity = errors.New("lang: wrong number of arguments")
	// ErrTypeMismatch is returned when a builtin receives the wrong kind.
	ErrTypeMismatch = errors.New("lang: type mismatch")
	// ErrBadSyntax is returned for malformed special forms.
	ErrBadSyntax = errors.New("lang: bad syntax")
	// ErrNotChainable is returned when a chained function does not return
	// an (output . closure) pair.
	ErrNotChainable = errors.New("lang: chained function must return (output . closure)")
)

// DefaultStepLimit bounds a single evaluation. Every proof-bearing
// evaluation runs under an explicit reduction limit; anything that does
// not settle within the budget is reported as divergent.
const DefaultStepLimit = 10000

// Eval reduces expr in env under the given step limit, recording one
// trace frame per reduction. Evaluation is deterministic: the same
// expression and environment always produce the same value and a
// byte-identical trace.
func Eval(expr Value, env *Env, limit int) (Value, *Trace, error) {
	ev := &evaluator{limit: limit, trace: new(Trace)}
	v, err := ev.eval(expr, env)
	if err != nil {
		return Value{}, nil, err
	}
	return v, ev.trace, nil
}

// Apply applies fn to args under the step limit, returning the result and
// the evaluation trace.
func Apply(fn Value, args []Value, limit int) (Value, *Trace, error) {
	ev := &evaluator{limit: limit, trace: new(Trace)}
	v, err := ev.apply(fn, args)
	if err != nil {
		return Value{}, nil, err
	}
	return v, ev.trace, nil
}

// ApplyChain applies a committed closure to one input following the
// chaining convention: the closure must return a pair whose car is the
// observable output and whose cdr is the successor closure capturing the
// updated state. Anything else fails with ErrNotChainable.
func ApplyChain(fn Value, input Value, limit int) (output, next Value, trace *Trace, err error) {
	if fn.Kind != KindClosure {
		return Value{}, Value{}, nil, ErrNotChainable
	}
	res, tr, err := Apply(fn, []Value{input}, limit)
	if err != nil {
		return Value{}, Value{}, nil, err
	}
	if res.Kind != KindCons || res.Cdr.Kind != KindClosure {
		return Value{}, Value{}, nil, ErrNotChainable
	}
	return *res.Car, *res.Cdr, tr, nil
}

type evaluator struct {
	limit int
	steps int
	trace *Trace
}

func (ev *evaluator) eval(expr Value, env *Env) (Value, error) {
	if ev.steps >= ev.limit {
		return Value{}, ErrStepBudget
	}
	ev.steps++
	in := hashFrameInput(expr, env)

	out, err := ev.reduce(expr, env)
	if err != nil {
		return Value{}, err
	}
	ev.trace.append(in, HashValue(out))
	return out, nil
}

func (ev *evaluator) reduce(expr Value, env *Env) (Value, error) {
	switch expr.Kind {
	case KindNil, KindNum, KindClosure, KindBuiltin:
		return expr, nil

	case KindSym:
		if v, ok := env.Lookup(expr.Sym); ok {
			return v, nil
		}
		if _, ok := builtins[expr.Sym]; ok {
			return Value{Kind: KindBuiltin, Builtin: expr.Sym}, nil
		}
		return Value{}, fmt.Errorf("%w: %s", ErrUnboundSymbol, expr.Sym)

	case KindCons:
		if expr.Car.Kind == KindSym {
			switch expr.Car.Sym {
			case "lambda":
				return evalLambda(expr, env)
			case "let":
				return ev.evalLet(expr, env)
			case "if":
				return ev.evalIf(expr, env)
			case "quote":
				return evalQuote(expr)
			}
		}
		return ev.evalApplication(expr, env)

	default:
		return Value{}, fmt.Errorf("%w: kind %d", ErrBadSyntax, expr.Kind)
	}
}

// evalLambda handles (lambda (p ...) body).
func evalLambda(expr Value, env *Env) (Value, error) {
	form, ok := listElems(expr)
	if !ok || len(form) != 3 {
		return Value{}, fmt.Errorf("%w: lambda", ErrBadSyntax)
	}
	paramList, ok := listElems(form[1])
	if !ok {
		return Value{}, fmt.Errorf("%w: lambda parameter list", ErrBadSyntax)
	}
	params := make([]string, len(paramList))
	for i, p := range paramList {
		if p.Kind != KindSym {
			return Value{}, fmt.Errorf("%w: lambda parameter", ErrBadSyntax)
		}
		params[i] = p.Sym
	}
	return Value{Kind: KindClosure, Fn: &Closure{Params: params, Body: form[2], Env: env}}, nil
}

// evalLet handles (let ((n e) ...) body) with sequential bindings: each
// initializer sees the bindings before it, never its own. Every binding
// gets a fresh frame, so a closure built by an initializer captures only
// the preceding bindings and captured environments stay acyclic.
func (ev *evaluator) evalLet(expr Value, env *Env) (Value, error) {
	form, ok := listElems(expr)
	if !ok || len(form) != 3 {
		return Value{}, fmt.Errorf("%w: let", ErrBadSyntax)
	}
	bindings, ok := listElems(form[1])
	if !ok {
		return Value{}, fmt.Errorf("%w: let bindings", ErrBadSyntax)
	}
	cur := env
	for _, b := range bindings {
		pair, ok := listElems(b)
		if !ok || len(pair) != 2 || pair[0].Kind != KindSym {
			return Value{}, fmt.Errorf("%w: let binding", ErrBadSyntax)
		}
		v, err := ev.eval(pair[1], cur)
		if err != nil {
			return Value{}, err
		}
		frame := NewEnv(cur)
		frame.Define(pair[0].Sym, v)
		cur = frame
	}
	return ev.eval(form[2], cur)
}

// evalIf handles (if cond then else?) with nil as the only false value.
func (ev *evaluator) evalIf(expr Value, env *Env) (Value, error) {
	form, ok := listElems(expr)
	if !ok || len(form) < 3 || len(form) > 4 {
		return Value{}, fmt.Errorf("%w: if", ErrBadSyntax)
	}
	cond, err := ev.eval(form[1], env)
	if err != nil {
		return Value{}, err
	}
	if !cond.IsNil() {
		return ev.eval(form[2], env)
	}
	if len(form) == 4 {
		return ev.eval(form[3], env)
	}
	return Nil(), nil
}

func evalQuote(expr Value) (Value, error) {
	form, ok := listElems(expr)
	if !ok || len(form) != 2 {
		return Value{}, fmt.Errorf("%w: quote", ErrBadSyntax)
	}
	return form[1], nil
}

func (ev *evaluator) evalApplication(expr Value, env *Env) (Value, error) {
	form, ok := listElems(expr)
	if !ok || len(form) == 0 {
		return Value{}, fmt.Errorf("%w: application", ErrBadSyntax)
	}
	fn, err := ev.eval(form[0], env)
	if err != nil {
		return Value{}, err
	}
	args := make([]Value, len(form)-1)
	for i, a := range form[1:] {
		v, err := ev.eval(a, env)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return ev.apply(fn, args)
}

func (ev *evaluator) apply(fn Value, args []Value) (Value, error) {
	switch fn.Kind {
	case KindClosure:
		if len(args) != len(fn.Fn.Params) {
			return Value{}, fmt.Errorf("%w: want %d, got %d", ErrBadArity, len(fn.Fn.Params), len(args))
		}
		frame := NewEnv(fn.Fn.Env)
		for i, p := range fn.Fn.Params {
			frame.Define(p, args[i])
		}
		return ev.eval(fn.Fn.Body, frame)
	case KindBuiltin:
		impl, ok := builtins[fn.Builtin]
		if !ok {
			return Value{}, fmt.Errorf("%w: %s", ErrNotApplicable, fn.Builtin)
		}
		return impl(args)
	default:
		return Value{}, fmt.Errorf("%w: %s", ErrNotApplicable, fn)
	}
}

// builtins are the primitive operators. Arithmetic is carried out in the
// BLS scalar field, matching the canonical range of numeric values.
var builtins = map[string]func([]Value) (Value, error){
	"+":    builtinAdd,
	"-":    builtinSub,
	"*":    builtinMul,
	"=":    builtinEq,
	"cons": builtinCons,
	"car":  builtinCar,
	"cdr":  builtinCdr,
}

func numArgs(name string, args []Value) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(args))
	for i, a := range args {
		if a.Kind != KindNum {
			return nil, fmt.Errorf("%w: %s expects numbers", ErrTypeMismatch, name)
		}
		out[i] = a.Num
	}
	return out, nil
}

func builtinAdd(args []Value) (Value, error) {
	ns, err := numArgs("+", args)
	if err != nil {
		return Value{}, err
	}
	acc := uint256.NewInt(0)
	for _, n := range ns {
		acc.AddMod(acc, n, scalarModulus)
	}
	return Value{Kind: KindNum, Num: acc}, nil
}

func builtinSub(args []Value) (Value, error) {
	ns, err := numArgs("-", args)
	if err != nil {
		return Value{}, err
	}
	if len(ns) == 0 {
		return Value{}, fmt.Errorf("%w: - needs at least one argument", ErrBadArity)
	}
	acc := new(uint256.Int).Set(ns[0])
	neg := new(uint256.Int)
	for _, n := range ns[1:] {
		neg.Sub(scalarModulus, n)
		acc.AddMod(acc, neg, scalarModulus)
	}
	return Value{Kind: KindNum, Num: acc}, nil
}

func builtinMul(args []Value) (Value, error) {
	ns, err := numArgs("*", args)
	if err != nil {
		return Value{}, err
	}
	acc := uint256.NewInt(1)
	for _, n := range ns {
		acc.MulMod(acc, n, scalarModulus)
	}
	return Value{Kind: KindNum, Num: acc}, nil
}

func builtinEq(args []Value) (Value, error) {
	ns, err := numArgs("=", args)
	if err != nil {
		return Value{}, err
	}
	if len(ns) < 2 {
		return Value{}, fmt.Errorf("%w: = needs at least two arguments", ErrBadArity)
	}
	for _, n := range ns[1:] {
		if !n.Eq(ns[0]) {
			return Nil(), nil
		}
	}
	return Sym("t"), nil
}

func builtinCons(args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, fmt.Errorf("%w: cons", ErrBadArity)
	}
	return Cons(args[0], args[1]), nil
}

func builtinCar(args []Value) (Value, error) {
	if len(args) != 1 || args[0].Kind != KindCons {
		return Value{}, fmt.Errorf("%w: car expects a pair", ErrTypeMismatch)
	}
	return *args[0].Car, nil
}

func builtinCdr(args []Value) (Value, error) {
	if len(args) != 1 || args[0].Kind != KindCons {
		return Value{}, fmt.Errorf("%w: cdr expects a pair", ErrTypeMismatch)
	}
	return *args[0].Cdr, nil
}
