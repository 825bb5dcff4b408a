package engine

import "math"

// NoteCount is the length of the scale table
const NoteCount = 8

// noteTable is one octave of the C major scale starting at middle C, in Hz
var noteTable = [NoteCount]float64{
	261.63, // C4
	293.66, // D4
	329.63, // E4
	349.23, // F4
	392.00, // G4
	440.00, // A4
	493.88, // B4
	523.25, // C5
}

// NoteIndex maps a magnitude to a scale position: round half away from
// zero, then wrap into the table. Magnitudes are finite and non-negative
// by construction, so no negative-modulo handling is needed.
func NoteIndex(magnitude float64) int {
	return int(math.Round(magnitude)) % NoteCount
}

// NoteFrequency returns the frequency in Hz a magnitude sounds at
func NoteFrequency(magnitude float64) float64 {
	return noteTable[NoteIndex(magnitude)]
}
