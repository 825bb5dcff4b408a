package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"github.com/PaesslerAG/gval"
)

// Evaluation errors that callers may want to branch on
var (
	ErrEmptyExpression   = errors.New("expression is empty")
	ErrNotFinite         = errors.New("expression result is not finite")
	ErrUnsupportedResult = errors.New("expression result is not a number")
)

// Result is a successfully evaluated expression value. Results are either
// real or complex; a complex value never silently downgrades to a real one,
// so "i*i" stays complex with modulus 1 even though its imaginary part is 0.
type Result struct {
	value  complex128
	isReal bool
}

// IsComplex reports whether the result carries an imaginary component type
func (r Result) IsComplex() bool { return !r.isReal }

// Real returns the real part of the result
func (r Result) Real() float64 { return real(r.value) }

// Complex returns the result as a complex number
func (r Result) Complex() complex128 { return r.value }

// Magnitude returns the value playback hears: the absolute value for real
// results and the modulus for complex ones. Always finite and non-negative.
func (r Result) Magnitude() float64 {
	if r.isReal {
		return math.Abs(real(r.value))
	}
	return cmplx.Abs(r.value)
}

// Plot returns the value the graph shows: signed for real results, modulus
// for complex ones. Playback and plotting deliberately disagree on sign.
func (r Result) Plot() float64 {
	if r.isReal {
		return real(r.value)
	}
	return cmplx.Abs(r.value)
}

// Compiled is a parsed expression ready for repeated evaluation
type Compiled struct {
	eval gval.Evaluable
}

// Compile parses an expression once so it can be evaluated at many points
func Compile(expr string) (*Compiled, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmptyExpression
	}
	ev, err := language.NewEvaluable(expr)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return &Compiled{eval: ev}, nil
}

// At evaluates the compiled expression with the given value bound to x
func (c *Compiled) At(x float64) (Result, error) {
	v, err := c.eval(context.Background(), map[string]interface{}{"x": x})
	if err != nil {
		return Result{}, err
	}
	return toResult(v)
}

// Evaluate parses and evaluates an expression with x bound
func Evaluate(expr string, x float64) (Result, error) {
	c, err := Compile(expr)
	if err != nil {
		return Result{}, err
	}
	return c.At(x)
}

// GraphPoints is the number of samples plotted for an expression
const GraphPoints = 32

// Sample is one plotted point of an expression curve. OK is false where
// evaluation failed; an absent sample leaves a hole in the curve.
type Sample struct {
	X     int     `json:"x"`
	Value float64 `json:"value"`
	OK    bool    `json:"ok"`
}

// Graph evaluates expr at x = 0..31. Evaluation failures yield absent
// samples rather than an error, so "1/(x-5)" plots everywhere except x=5.
func Graph(expr string) []Sample {
	samples := make([]Sample, GraphPoints)
	for i := range samples {
		samples[i].X = i
	}
	c, err := Compile(expr)
	if err != nil {
		return samples
	}
	for i := range samples {
		r, err := c.At(float64(i))
		if err != nil {
			continue
		}
		samples[i].Value = r.Plot()
		samples[i].OK = true
	}
	return samples
}

func toResult(v interface{}) (Result, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return Result{}, ErrNotFinite
		}
		return Result{value: complex(t, 0), isReal: true}, nil
	case int:
		return Result{value: complex(float64(t), 0), isReal: true}, nil
	case complex128:
		if !isFinite(t) {
			return Result{}, ErrNotFinite
		}
		return Result{value: t}, nil
	default:
		return Result{}, fmt.Errorf("%w: got %T", ErrUnsupportedResult, v)
	}
}

func isFinite(c complex128) bool {
	return !cmplx.IsNaN(c) && !cmplx.IsInf(c)
}
