package engine

import (
	"math"
	"testing"
)

func TestNoteIndex(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		want      int
	}{
		{"zero", 0, 0},
		{"identity at three", 3, 3},
		{"x squared at five", 25, 1},
		{"imaginary unit", 1, 1},
		{"top of table", 7, 7},
		{"wraps at eight", 8, 0},
		{"wraps past eight", 9, 1},
		{"half rounds up", 0.5, 1},
		{"rounds down below half", 7.4, 7},
		{"half rounds away then wraps", 7.5, 0},
		{"large magnitude", 803, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NoteIndex(tt.magnitude); got != tt.want {
				t.Errorf("NoteIndex(%v) = %d, want %d", tt.magnitude, got, tt.want)
			}
		})
	}
}

func TestNoteFrequency(t *testing.T) {
	tests := []struct {
		name      string
		magnitude float64
		want      float64
	}{
		{"middle C", 0, 261.63},
		{"D above middle C", 1, 293.66},
		{"F from identity at three", 3, 349.23},
		{"D from x squared at five", 25, 293.66},
		{"high C", 7, 523.25},
		{"octave wrap back to C", 8, 261.63},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NoteFrequency(tt.magnitude); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NoteFrequency(%v) = %v, want %v", tt.magnitude, got, tt.want)
			}
		})
	}
}
