package eval

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/PaesslerAG/gval"
)

// language is the expression language: float64 arithmetic that promotes to
// complex128 the moment an imaginary value enters, with x as the only free
// variable and pi, e and i bound as constants. Built once, safe for
// concurrent use.
var language = gval.NewLanguage(
	gval.Base(),

	gval.Constant("pi", math.Pi),
	gval.Constant("e", math.E),
	gval.Constant("i", complex(0, 1)),

	gval.PrefixOperator("-", negate),

	infix("+",
		func(a, b float64) float64 { return a + b },
		func(a, b complex128) complex128 { return a + b }),
	infix("-",
		func(a, b float64) float64 { return a - b },
		func(a, b complex128) complex128 { return a - b }),
	infix("*",
		func(a, b float64) float64 { return a * b },
		func(a, b complex128) complex128 { return a * b }),
	infix("/",
		func(a, b float64) float64 { return a / b },
		func(a, b complex128) complex128 { return a / b }),
	infix("%", math.Mod, nil),
	gval.InfixOperator("^", power),

	gval.Precedence("+", 120),
	gval.Precedence("-", 120),
	gval.Precedence("*", 130),
	gval.Precedence("/", 130),
	gval.Precedence("%", 130),
	gval.Precedence("^", 200),

	oneArg("sin", math.Sin, cmplx.Sin),
	oneArg("cos", math.Cos, cmplx.Cos),
	oneArg("tan", math.Tan, cmplx.Tan),
	oneArg("asin", math.Asin, cmplx.Asin),
	oneArg("acos", math.Acos, cmplx.Acos),
	oneArg("atan", math.Atan, cmplx.Atan),
	oneArg("sinh", math.Sinh, cmplx.Sinh),
	oneArg("cosh", math.Cosh, cmplx.Cosh),
	oneArg("tanh", math.Tanh, cmplx.Tanh),
	oneArg("sqrt", math.Sqrt, cmplx.Sqrt),
	oneArg("log", math.Log, cmplx.Log),
	oneArg("log2", math.Log2, nil),
	oneArg("log10", math.Log10, cmplx.Log10),
	oneArg("exp", math.Exp, cmplx.Exp),
	oneArg("floor", math.Floor, nil),
	oneArg("ceil", math.Ceil, nil),
	oneArg("round", math.Round, nil),
	absFunction(),
)

// asReal extracts a plain real operand
func asReal(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

// asComplex extracts any numeric operand as a complex number
func asComplex(v interface{}) (complex128, bool) {
	switch t := v.(type) {
	case complex128:
		return t, true
	case float64:
		return complex(t, 0), true
	case int:
		return complex(float64(t), 0), true
	default:
		return 0, false
	}
}

// infix builds a numeric operator that stays real when both operands are
// real and promotes to complex otherwise. A nil cplxOp marks an operator
// that has no complex form.
func infix(name string, realOp func(a, b float64) float64, cplxOp func(a, b complex128) complex128) gval.Language {
	return gval.InfixOperator(name, func(a, b interface{}) (interface{}, error) {
		ra, aReal := asReal(a)
		rb, bReal := asReal(b)
		if aReal && bReal {
			return realOp(ra, rb), nil
		}
		ca, ok := asComplex(a)
		if !ok {
			return nil, operandError(name, a)
		}
		cb, ok := asComplex(b)
		if !ok {
			return nil, operandError(name, b)
		}
		if cplxOp == nil {
			return nil, fmt.Errorf("operator %s is not defined for complex numbers", name)
		}
		return cplxOp(ca, cb), nil
	})
}

// power implements ^. A real base with a real exponent stays real unless
// the result escapes the real line (negative base, fractional exponent),
// in which case the principal complex value is returned, which is what
// users expect from (-8)^(1/3).
func power(a, b interface{}) (interface{}, error) {
	ra, aReal := asReal(a)
	rb, bReal := asReal(b)
	if aReal && bReal {
		r := math.Pow(ra, rb)
		if !math.IsNaN(r) {
			return r, nil
		}
		return cmplx.Pow(complex(ra, 0), complex(rb, 0)), nil
	}
	ca, ok := asComplex(a)
	if !ok {
		return nil, operandError("^", a)
	}
	cb, ok := asComplex(b)
	if !ok {
		return nil, operandError("^", b)
	}
	return cmplx.Pow(ca, cb), nil
}

func negate(_ context.Context, v interface{}) (interface{}, error) {
	if r, ok := asReal(v); ok {
		return -r, nil
	}
	if c, ok := asComplex(v); ok {
		return -c, nil
	}
	return nil, operandError("-", v)
}

// oneArg builds a single-argument function. Real arguments use the real
// implementation and fall through to the complex one when the real math
// runs off the real line (sqrt(-4), log(-1), asin(2)). A nil cplxFn marks
// a real-only function.
func oneArg(name string, realFn func(float64) float64, cplxFn func(complex128) complex128) gval.Language {
	return gval.Function(name, func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s expects exactly one argument, got %d", name, len(args))
		}
		if r, ok := asReal(args[0]); ok {
			v := realFn(r)
			if math.IsNaN(v) && cplxFn != nil {
				return cplxFn(complex(r, 0)), nil
			}
			return v, nil
		}
		c, ok := asComplex(args[0])
		if !ok {
			return nil, operandError(name, args[0])
		}
		if cplxFn == nil {
			return nil, fmt.Errorf("%s is not defined for complex arguments", name)
		}
		return cplxFn(c), nil
	})
}

// absFunction returns a real magnitude for any numeric argument, so
// abs(3-4i) is 5, not a complex value.
func absFunction() gval.Language {
	return gval.Function("abs", func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs expects exactly one argument, got %d", len(args))
		}
		if r, ok := asReal(args[0]); ok {
			return math.Abs(r), nil
		}
		c, ok := asComplex(args[0])
		if !ok {
			return nil, operandError("abs", args[0])
		}
		return cmplx.Abs(c), nil
	})
}

func operandError(name string, v interface{}) error {
	return fmt.Errorf("%s: operand is not a number (got %T)", name, v)
}
