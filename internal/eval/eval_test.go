package eval

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluateReal(t *testing.T) {
	tests := []struct {
		name string
		expr string
		x    float64
		want float64
	}{
		{"identity", "x", 3, 3},
		{"square", "x^2", 5, 25},
		{"negation", "-x", 3, -3},
		{"division", "x/2", 5, 2.5},
		{"modulo", "x % 3", 7, 1},
		{"pi constant", "pi", 0, math.Pi},
		{"e constant", "e", 0, math.E},
		{"mixed", "2*x + 1", 4, 9},
		{"precedence", "2 + 3 * x", 2, 8},
		{"parentheses", "(2 + 3) * x", 2, 10},
		{"sine", "sin(0)", 0, 0},
		{"sqrt", "sqrt(x)", 16, 4},
		{"abs of negative", "abs(x - 10)", 3, 7},
		{"power binds tighter than minus", "x^2 - 30", 5, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, tt.x)
			if err != nil {
				t.Fatalf("Evaluate(%q, %v) returned error: %v", tt.expr, tt.x, err)
			}
			if got.IsComplex() {
				t.Errorf("Evaluate(%q, %v) = complex %v, want real", tt.expr, tt.x, got.Complex())
			}
			if !almostEqual(got.Real(), tt.want) {
				t.Errorf("Evaluate(%q, %v) = %v, want %v", tt.expr, tt.x, got.Real(), tt.want)
			}
		})
	}
}

func TestEvaluateComplex(t *testing.T) {
	tests := []struct {
		name          string
		expr          string
		x             float64
		wantMagnitude float64
	}{
		{"imaginary unit", "i", 0, 1},
		{"scaled imaginary", "2*i", 0, 2},
		{"i squared stays complex", "i*i", 0, 1},
		{"sqrt of negative", "sqrt(x - 8)", 4, 2},
		{"complex sum", "3 + 4*i", 0, 5},
		{"x times i", "x*i", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.expr, tt.x)
			if err != nil {
				t.Fatalf("Evaluate(%q, %v) returned error: %v", tt.expr, tt.x, err)
			}
			if !got.IsComplex() {
				t.Errorf("Evaluate(%q, %v) = real %v, want complex", tt.expr, tt.x, got.Real())
			}
			if !almostEqual(got.Magnitude(), tt.wantMagnitude) {
				t.Errorf("Magnitude() = %v, want %v", got.Magnitude(), tt.wantMagnitude)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		x    float64
		want error // nil means any error is acceptable
	}{
		{"empty", "", 0, ErrEmptyExpression},
		{"whitespace only", "   ", 0, ErrEmptyExpression},
		{"division by zero", "1/(x-5)", 5, ErrNotFinite},
		{"log of zero", "log(x)", 0, ErrNotFinite},
		{"boolean result", "x == 3", 3, ErrUnsupportedResult},
		{"string result", `"hello"`, 0, ErrUnsupportedResult},
		{"unknown variable", "y + 1", 0, nil},
		{"dangling operator", "x +", 0, nil},
		{"unbalanced parens", "(x + 1", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.expr, tt.x)
			if err == nil {
				t.Fatalf("Evaluate(%q, %v) succeeded, want error", tt.expr, tt.x)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Evaluate(%q, %v) error = %v, want %v", tt.expr, tt.x, err, tt.want)
			}
		})
	}
}

func TestMagnitudeVersusPlot(t *testing.T) {
	// Playback hears magnitudes, the graph shows signed reals. The two
	// views of the same result must disagree for negative reals.
	got, err := Evaluate("x - 10", 3)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !almostEqual(got.Magnitude(), 7) {
		t.Errorf("Magnitude() = %v, want 7", got.Magnitude())
	}
	if !almostEqual(got.Plot(), -7) {
		t.Errorf("Plot() = %v, want -7", got.Plot())
	}

	// Complex results plot their modulus, never a signed value.
	got, err = Evaluate("-3*i + 4", 0)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !almostEqual(got.Plot(), 5) {
		t.Errorf("Plot() = %v, want 5", got.Plot())
	}
}

func TestGraph(t *testing.T) {
	samples := Graph("1/(x-5)")
	if len(samples) != GraphPoints {
		t.Fatalf("Graph returned %d samples, want %d", len(samples), GraphPoints)
	}

	absent := 0
	for _, s := range samples {
		if !s.OK {
			absent++
			if s.X != 5 {
				t.Errorf("absent sample at x=%d, want only x=5", s.X)
			}
		}
	}
	if absent != 1 {
		t.Errorf("Graph(\"1/(x-5)\") has %d absent samples, want 1", absent)
	}

	// Left of the pole the curve is negative, right of it positive.
	if samples[4].Value >= 0 {
		t.Errorf("sample at x=4 = %v, want negative", samples[4].Value)
	}
	if samples[6].Value <= 0 {
		t.Errorf("sample at x=6 = %v, want positive", samples[6].Value)
	}
}

func TestGraphIndexes(t *testing.T) {
	samples := Graph("x")
	for i, s := range samples {
		if s.X != i {
			t.Errorf("samples[%d].X = %d, want %d", i, s.X, i)
		}
		if !s.OK {
			t.Errorf("samples[%d] absent, want present", i)
		}
		if !almostEqual(s.Value, float64(i)) {
			t.Errorf("samples[%d].Value = %v, want %v", i, s.Value, float64(i))
		}
	}
}

func TestGraphOfInvalidExpression(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"empty", ""},
		{"garbage", "@#$%"},
		{"unknown variable", "y * 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := Graph(tt.expr)
			if len(samples) != GraphPoints {
				t.Fatalf("Graph returned %d samples, want %d", len(samples), GraphPoints)
			}
			for _, s := range samples {
				if s.OK {
					t.Errorf("sample at x=%d present, want all absent", s.X)
				}
			}
		})
	}
}

func TestGraphComplexPlotsModulus(t *testing.T) {
	samples := Graph("x*i")
	for i, s := range samples {
		if !s.OK {
			t.Fatalf("sample at x=%d absent, want present", i)
		}
		if !almostEqual(s.Value, float64(i)) {
			t.Errorf("samples[%d].Value = %v, want modulus %v", i, s.Value, float64(i))
		}
	}
}

func TestCompileReuse(t *testing.T) {
	c, err := Compile("x^2 + 1")
	if err != nil {
		t.Fatalf("Compile returned error: %v", err)
	}
	for x := 0; x < 4; x++ {
		got, err := c.At(float64(x))
		if err != nil {
			t.Fatalf("At(%d) returned error: %v", x, err)
		}
		want := float64(x*x + 1)
		if !almostEqual(got.Real(), want) {
			t.Errorf("At(%d) = %v, want %v", x, got.Real(), want)
		}
	}
}
