package render

import (
	"fmt"
	"os"
	"time"

	"mathemelody/internal/engine"
	"mathemelody/internal/eval"
	"mathemelody/internal/synth"
	"mathemelody/pkg/models"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// MaxLoops caps how many passes over the grid one render may make.
const MaxLoops = 8

// trigger is one collected note: when it sounded and what it sounded like.
type trigger struct {
	at   time.Duration
	freq float64
	wave synth.WaveType
}

// collector records every tone the engine fires together with the virtual
// time it fired at, for later offline synthesis.
type collector struct {
	sched    *engine.ManualScheduler
	triggers []trigger
}

func (c *collector) Trigger(freq float64, wave synth.WaveType) {
	c.triggers = append(c.triggers, trigger{at: c.sched.Now(), freq: freq, wave: wave})
}

// stepEvents adapts a step-failure callback to the engine's event interface.
// Offline rendering has no use for the presentational events.
type stepEvents struct {
	onError func(index int, err error)
}

func (e stepEvents) StepActivated(int)          {}
func (e stepEvents) StepDeactivated(int)        {}
func (e stepEvents) GraphUpdated([]eval.Sample) {}
func (e stepEvents) StepFailed(i int, err error) {
	if e.onError != nil {
		e.onError(i, err)
	}
}

// Render plays a composition document through the engine on a virtual clock
// and mixes every triggered tone into one mono buffer: loops passes over the
// grid plus a tail for the final tone to ring out. Step evaluation errors
// become silent steps, exactly as in live playback; onStepError (optional)
// observes them as they happen.
func Render(doc models.CompositionFile, loops int, onStepError func(index int, err error)) ([]float64, error) {
	if loops < 1 || loops > MaxLoops {
		return nil, fmt.Errorf("loops must be between 1 and %d", MaxLoops)
	}
	waveType, err := synth.ParseWave(doc.Settings.WaveType)
	if err != nil {
		return nil, err
	}

	sched := engine.NewManualScheduler()
	tones := &collector{sched: sched}

	eng, err := engine.New(engine.Config{
		Slots:     len(doc.Equations),
		Tempo:     doc.Settings.Tempo,
		Wave:      waveType,
		Scheduler: sched,
		Tone:      tones,
		Events:    stepEvents{onError: onStepError},
	})
	if err != nil {
		return nil, err
	}
	for i, expr := range doc.Equations {
		eng.SetExpression(i, expr)
	}

	steps := loops * len(doc.Equations)
	period := engine.StepPeriod(doc.Settings.Tempo)

	eng.Start()
	sched.Advance(period * time.Duration(steps))
	eng.Stop()

	total := steps*synth.DurationSamples(period) + synth.DurationSamples(synth.ToneDuration)
	buf := make([]float64, total)
	for _, tr := range tones.triggers {
		// The scheduler fires the first step one period after start, so
		// shift triggers back by one period to put step 0 at t=0.
		tone := synth.Tone(tr.freq, tr.wave)
		synth.MixAt(buf, tone, synth.DurationSamples(tr.at-period))
	}
	return buf, nil
}

// WriteWAV encodes mono float samples as a 16-bit PCM WAV file.
func WriteWAV(path string, samples []float64) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	encoder := wav.NewEncoder(out, synth.SampleRate, 16, 1, 1)
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: synth.SampleRate},
		Data:           synth.ToPCM16(samples),
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buffer); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}
