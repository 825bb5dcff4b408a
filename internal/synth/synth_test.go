package synth

import (
	"math"
	"testing"
	"time"
)

func TestParseWave(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    WaveType
		wantErr bool
	}{
		{"sine", "sine", WaveSine, false},
		{"square", "square", WaveSquare, false},
		{"sawtooth", "sawtooth", WaveSawtooth, false},
		{"triangle", "triangle", WaveTriangle, false},
		{"empty", "", "", true},
		{"unknown", "pulse", "", true},
		{"wrong case", "Sine", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWave(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWave(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWave(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestToneLength(t *testing.T) {
	tone := Tone(440, WaveSine)
	want := DurationSamples(300 * time.Millisecond)
	if len(tone) != want {
		t.Errorf("len(Tone()) = %d, want %d", len(tone), want)
	}
}

func TestEnvelopeShape(t *testing.T) {
	attack := DurationSamples(10 * time.Millisecond)
	total := DurationSamples(300 * time.Millisecond)

	if got := envelopeAt(0); got != 0 {
		t.Errorf("envelopeAt(0) = %v, want 0", got)
	}
	if got := envelopeAt(attack); got != 1 {
		t.Errorf("envelopeAt(attack) = %v, want 1", got)
	}
	if got := envelopeAt(attack / 2); got <= 0 || got >= 1 {
		t.Errorf("envelopeAt(mid-attack) = %v, want between 0 and 1", got)
	}
	if got := envelopeAt(total - 1); got <= 0 || got > 0.01 {
		t.Errorf("envelopeAt(last sample) = %v, want just above 0", got)
	}
	if got := envelopeAt(total); got != 0 {
		t.Errorf("envelopeAt(total) = %v, want 0", got)
	}

	// Decay must be monotonic.
	prev := envelopeAt(attack)
	for i := attack + 1; i < total; i += 100 {
		cur := envelopeAt(i)
		if cur > prev {
			t.Fatalf("envelope rose during decay at sample %d: %v > %v", i, cur, prev)
		}
		prev = cur
	}
}

func TestOscillatorShapes(t *testing.T) {
	tests := []struct {
		name  string
		wave  WaveType
		phase float64
		want  float64
	}{
		{"sine at zero", WaveSine, 0, 0},
		{"sine at quarter", WaveSine, 0.25, 1},
		{"square first half", WaveSquare, 0.1, 1},
		{"square second half", WaveSquare, 0.6, -1},
		{"sawtooth start", WaveSawtooth, 0, -1},
		{"sawtooth middle", WaveSawtooth, 0.5, 0},
		{"triangle peak", WaveTriangle, 0.25, 1},
		{"triangle trough", WaveTriangle, 0.75, -1},
		{"triangle zero", WaveTriangle, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := oscillate(tt.wave, tt.phase)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("oscillate(%v, %v) = %v, want %v", tt.wave, tt.phase, got, tt.want)
			}
		})
	}
}

func TestToneIsAudible(t *testing.T) {
	tone := Tone(440, WaveSine)
	peak := 0.0
	for _, s := range tone {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak < 0.1 {
		t.Errorf("tone peak = %v, want something audible", peak)
	}
	if peak > 1 {
		t.Errorf("tone peak = %v, exceeds full scale", peak)
	}
}

func TestMixAtOverlapAndClamp(t *testing.T) {
	dst := make([]float64, 10)
	tone := []float64{0.8, 0.8, 0.8}

	MixAt(dst, tone, 0)
	MixAt(dst, tone, 1) // overlaps two samples

	if dst[0] != 0.8 {
		t.Errorf("dst[0] = %v, want 0.8", dst[0])
	}
	if dst[1] != 1 {
		t.Errorf("dst[1] = %v, want clamped to 1", dst[1])
	}
	if dst[3] != 0.8 {
		t.Errorf("dst[3] = %v, want 0.8", dst[3])
	}
	if dst[4] != 0 {
		t.Errorf("dst[4] = %v, want untouched", dst[4])
	}
}

func TestMixAtPastEnd(t *testing.T) {
	dst := make([]float64, 2)
	MixAt(dst, []float64{0.5, 0.5, 0.5, 0.5}, 1)
	if dst[0] != 0 || dst[1] != 0.5 {
		t.Errorf("dst = %v, want [0 0.5]", dst)
	}
}

func TestToPCM16Bytes(t *testing.T) {
	got := ToPCM16Bytes([]float64{0, 1, -1})
	if len(got) != 6 {
		t.Fatalf("len = %d, want 6", len(got))
	}
	// 0 -> 0x0000, 1 -> 32767 (0xFF7F little endian), -1 -> -32767 (0x0180)
	if got[0] != 0x00 || got[1] != 0x00 {
		t.Errorf("sample 0 = % x, want 00 00", got[0:2])
	}
	if got[2] != 0xFF || got[3] != 0x7F {
		t.Errorf("sample 1 = % x, want ff 7f", got[2:4])
	}
	if got[4] != 0x01 || got[5] != 0x80 {
		t.Errorf("sample 2 = % x, want 01 80", got[4:6])
	}
}

func TestToPCM16Clamps(t *testing.T) {
	got := ToPCM16([]float64{2.5, -2.5})
	if got[0] != 32767 {
		t.Errorf("ToPCM16(2.5) = %d, want 32767", got[0])
	}
	if got[1] != -32767 {
		t.Errorf("ToPCM16(-2.5) = %d, want -32767", got[1])
	}
}
