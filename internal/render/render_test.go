package render

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"mathemelody/internal/synth"
	"mathemelody/pkg/models"
)

func testDoc(equations []string, tempo int) models.CompositionFile {
	return models.CompositionFile{
		Title:     "test",
		Equations: equations,
		Settings:  models.Settings{Tempo: tempo, WaveType: "sine"},
	}
}

func TestRenderBufferLength(t *testing.T) {
	// Two slots at 120 BPM: an eighth note is 250ms, so one pass is two
	// 250ms steps plus the 300ms tail of the last tone.
	doc := testDoc([]string{"x", "x+1"}, 120)

	buf, err := Render(doc, 1, nil)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	stepSamples := synth.SampleRate / 4 // 250ms
	want := 2*stepSamples + synth.DurationSamples(synth.ToneDuration)
	if len(buf) != want {
		t.Errorf("Render() buffer length = %d, want %d", len(buf), want)
	}

	var peak float64
	for _, s := range buf {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		t.Error("Render() produced a silent buffer for evaluable slots")
	}
}

func TestRenderFirstStepSoundsImmediately(t *testing.T) {
	// Step 0's tone must begin at the start of the buffer, not one step
	// period in.
	doc := testDoc([]string{"x"}, 120)

	buf, err := Render(doc, 1, nil)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	stepSamples := synth.SampleRate / 4
	var peak float64
	for _, s := range buf[:stepSamples/2] {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		t.Error("Render() opens with a silent step period")
	}
}

func TestRenderLoops(t *testing.T) {
	doc := testDoc([]string{"1"}, 120)

	one, err := Render(doc, 1, nil)
	if err != nil {
		t.Fatalf("Render(loops=1) error: %v", err)
	}
	three, err := Render(doc, 3, nil)
	if err != nil {
		t.Fatalf("Render(loops=3) error: %v", err)
	}

	stepSamples := synth.SampleRate / 4
	if len(three)-len(one) != 2*stepSamples {
		t.Errorf("3 loops should add exactly 2 steps: got %d extra samples, want %d",
			len(three)-len(one), 2*stepSamples)
	}

	if _, err := Render(doc, 0, nil); err == nil {
		t.Error("Render(loops=0) should fail")
	}
	if _, err := Render(doc, MaxLoops+1, nil); err == nil {
		t.Error("Render(loops>max) should fail")
	}
}

func TestRenderStepErrors(t *testing.T) {
	// Slot 1 has a syntax error: it must stay silent, be reported with its
	// index, and not abort the render.
	doc := testDoc([]string{"x", "???", "x"}, 240)

	var failed []int
	buf, err := Render(doc, 2, func(index int, stepErr error) {
		if stepErr == nil {
			t.Error("step error callback invoked with nil error")
		}
		failed = append(failed, index)
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if len(buf) == 0 {
		t.Fatal("Render() returned an empty buffer")
	}

	if len(failed) != 2 {
		t.Fatalf("got %d step failures, want 2 (one per loop)", len(failed))
	}
	for _, index := range failed {
		if index != 1 {
			t.Errorf("failed step index = %d, want 1", index)
		}
	}
}

func TestRenderRejectsUnknownWave(t *testing.T) {
	doc := testDoc([]string{"x"}, 120)
	doc.Settings.WaveType = "theremin"

	if _, err := Render(doc, 1, nil); err == nil {
		t.Error("Render() should reject an unknown wave type")
	}
}

func TestWriteWAV(t *testing.T) {
	doc := testDoc([]string{"2"}, 120)
	buf, err := Render(doc, 1, nil)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := WriteWAV(path, buf); err != nil {
		t.Fatalf("WriteWAV() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	// 16-bit mono PCM payload plus the RIFF header
	if min := int64(len(buf) * 2); info.Size() <= min {
		t.Errorf("WAV size = %d, want more than the %d-byte payload", info.Size(), min)
	}
}
