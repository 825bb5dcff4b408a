package synth

import (
	"fmt"
	"math"
	"time"
)

// SampleRate is the output sample rate in Hz for all synthesized audio
const SampleRate = 44100

// Tone envelope: a near-instant linear attack followed by a linear decay
// to silence. Overlapping tones are expected whenever the step period is
// shorter than the tone.
const (
	ToneDuration   = 300 * time.Millisecond
	attackDuration = 10 * time.Millisecond
	toneGain       = 0.35
)

// WaveType selects the oscillator shape
type WaveType string

const (
	WaveSine     WaveType = "sine"
	WaveSquare   WaveType = "square"
	WaveSawtooth WaveType = "sawtooth"
	WaveTriangle WaveType = "triangle"
)

// WaveTypes lists the supported oscillator shapes
func WaveTypes() []WaveType {
	return []WaveType{WaveSine, WaveSquare, WaveSawtooth, WaveTriangle}
}

// Valid reports whether the wave type is one of the supported shapes
func (w WaveType) Valid() bool {
	switch w {
	case WaveSine, WaveSquare, WaveSawtooth, WaveTriangle:
		return true
	}
	return false
}

// ParseWave converts a settings string into a WaveType
func ParseWave(s string) (WaveType, error) {
	w := WaveType(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown wave type %q (must be sine, square, sawtooth or triangle)", s)
	}
	return w, nil
}

// DurationSamples converts a duration to a sample count at SampleRate
func DurationSamples(d time.Duration) int {
	return int(d.Seconds() * SampleRate)
}

// Tone synthesizes a single enveloped tone at the given frequency into a
// fresh mono float64 buffer in [-1, 1].
func Tone(freq float64, wave WaveType) []float64 {
	n := DurationSamples(ToneDuration)
	samples := make([]float64, n)
	phase := 0.0
	step := freq / SampleRate
	for i := range samples {
		samples[i] = envelopeAt(i) * toneGain * oscillate(wave, phase)
		phase += step
		if phase >= 1 {
			phase -= math.Floor(phase)
		}
	}
	return samples
}

// envelopeAt returns the amplitude envelope for sample index i: 0 to 1
// over the attack, then back to 0 by the end of the tone.
func envelopeAt(i int) float64 {
	attack := DurationSamples(attackDuration)
	total := DurationSamples(ToneDuration)
	switch {
	case i < attack:
		return float64(i) / float64(attack)
	case i >= total:
		return 0
	default:
		return float64(total-i) / float64(total-attack)
	}
}

// oscillate returns the waveform value at phase p in [0, 1)
func oscillate(wave WaveType, p float64) float64 {
	switch wave {
	case WaveSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case WaveSawtooth:
		return 2*p - 1
	case WaveTriangle:
		switch {
		case p < 0.25:
			return 4 * p
		case p < 0.75:
			return 2 - 4*p
		default:
			return 4*p - 4
		}
	default: // sine
		return math.Sin(2 * math.Pi * p)
	}
}

// MixAt adds a tone into dst starting at the given sample offset, clamping
// to [-1, 1] so stacked tones distort instead of wrapping. Samples that
// fall past the end of dst are dropped.
func MixAt(dst []float64, tone []float64, offset int) {
	for i, s := range tone {
		j := offset + i
		if j < 0 {
			continue
		}
		if j >= len(dst) {
			break
		}
		v := dst[j] + s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst[j] = v
	}
}

// ToPCM16 converts float samples to 16-bit integer PCM values
func ToPCM16(samples []float64) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = pcm16(s)
	}
	return out
}

// ToPCM16Bytes converts float samples to 16-bit little-endian PCM bytes,
// the layout audio players consume directly.
func ToPCM16Bytes(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := pcm16(s)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func pcm16(s float64) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(s * 32767)
}
