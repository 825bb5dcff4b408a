package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mathemelody/internal/eval"
	"mathemelody/internal/synth"
)

// Grid bounds and defaults
const (
	MinSlots     = 1
	MaxSlots     = 32
	DefaultSlots = 8
	DefaultTempo = 120
	MaxTempo     = 960

	// markerDuration is how long a slot stays marked active after its step
	markerDuration = 100 * time.Millisecond
)

// Validation errors callers can branch on
var (
	ErrGridSize = errors.New("grid size must be between 1 and 32")
	ErrTempo    = errors.New("tempo must be between 1 and 960")
)

// ToneTrigger receives each note the sequencer sounds. Implementations
// must return quickly; they are called from the tick.
type ToneTrigger interface {
	Trigger(freq float64, wave synth.WaveType)
}

// Events receives engine state changes. Methods are called outside the
// engine lock, so implementations may call back into the engine.
type Events interface {
	// StepActivated marks a slot as currently sounding; StepDeactivated
	// clears the mark 100ms later, or immediately on stop.
	StepActivated(index int)
	StepDeactivated(index int)
	// StepFailed reports an evaluation failure. The error message is keyed
	// by the 1-based step number; index is 0-based.
	StepFailed(index int, err error)
	// GraphUpdated delivers the freshly plotted curve of the most recently
	// evaluated or edited expression.
	GraphUpdated(samples []eval.Sample)
}

// Config sets up a new Engine. Zero values fall back to defaults.
type Config struct {
	Slots     int
	Tempo     int
	Wave      synth.WaveType
	Scheduler Scheduler   // TimerScheduler when nil
	Tone      ToneTrigger // optional
	Events    Events      // optional
}

// Engine is the playback sequencer: a grid of expression slots stepped by
// a timer. All state changes go through its methods.
type Engine struct {
	mu         sync.Mutex
	slots      []string
	step       int
	tempo      int
	wave       synth.WaveType
	playing    bool
	cancelTick func()
	markers    map[int]func()
	graph      []eval.Sample

	sched  Scheduler
	tone   ToneTrigger
	events Events
}

// New builds an Engine from cfg
func New(cfg Config) (*Engine, error) {
	if cfg.Slots == 0 {
		cfg.Slots = DefaultSlots
	}
	if cfg.Tempo == 0 {
		cfg.Tempo = DefaultTempo
	}
	if cfg.Wave == "" {
		cfg.Wave = synth.WaveSine
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = TimerScheduler{}
	}
	if cfg.Slots < MinSlots || cfg.Slots > MaxSlots {
		return nil, ErrGridSize
	}
	if cfg.Tempo < 1 || cfg.Tempo > MaxTempo {
		return nil, ErrTempo
	}
	if !cfg.Wave.Valid() {
		return nil, fmt.Errorf("unknown wave type %q", cfg.Wave)
	}
	return &Engine{
		slots:   make([]string, cfg.Slots),
		tempo:   cfg.Tempo,
		wave:    cfg.Wave,
		markers: make(map[int]func()),
		graph:   eval.Graph(""),
		sched:   cfg.Scheduler,
		tone:    cfg.Tone,
		events:  cfg.Events,
	}, nil
}

// StepPeriod converts beats per minute to the interval between grid
// steps: half a beat, so each slot is an eighth note.
func StepPeriod(bpm int) time.Duration {
	ms := 60.0 / float64(bpm) * 1000.0 / 2.0
	return time.Duration(ms * float64(time.Millisecond))
}

// Resize replaces the grid with n empty slots and rewinds the cursor.
// Playback stops first so no timer outlives the grid it was stepping. An
// out-of-range n leaves the grid untouched.
func (e *Engine) Resize(n int) error {
	if n < MinSlots || n > MaxSlots {
		return ErrGridSize
	}
	e.Stop()
	e.mu.Lock()
	e.slots = make([]string, n)
	e.step = 0
	e.mu.Unlock()
	return nil
}

// SetExpression stores the expression for slot i and recomputes the graph
// from the new text, even when it is empty or invalid. The cursor is
// unaffected. Panics if i is out of range: slot indexes come from the grid
// itself, so a bad index is a bug in the caller.
func (e *Engine) SetExpression(i int, text string) {
	e.mu.Lock()
	if i < 0 || i >= len(e.slots) {
		n := len(e.slots)
		e.mu.Unlock()
		panic(fmt.Sprintf("engine: slot index %d out of range [0,%d)", i, n))
	}
	e.slots[i] = text
	e.mu.Unlock()
	e.updateGraph(text)
}

// Expression returns the text in slot i
func (e *Engine) Expression(i int) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.slots) {
		panic(fmt.Sprintf("engine: slot index %d out of range [0,%d)", i, len(e.slots)))
	}
	return e.slots[i]
}

// Expressions returns a copy of the grid contents
func (e *Engine) Expressions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.slots))
	copy(out, e.slots)
	return out
}

// SetTempo changes the beat rate. While running, the timer is restarted so
// the new period takes effect immediately rather than drifting in on the
// old ticker; restarting rewinds the cursor, as stop always does.
func (e *Engine) SetTempo(bpm int) error {
	if bpm < 1 || bpm > MaxTempo {
		return ErrTempo
	}
	e.mu.Lock()
	restart := e.playing
	e.tempo = bpm
	e.mu.Unlock()
	if restart {
		e.Stop()
		e.Start()
	}
	return nil
}

// SetWave changes the oscillator shape used from the next trigger on
func (e *Engine) SetWave(w synth.WaveType) error {
	if !w.Valid() {
		return fmt.Errorf("unknown wave type %q", w)
	}
	e.mu.Lock()
	e.wave = w
	e.mu.Unlock()
	return nil
}

// Start begins stepping the grid. The tempo is sampled once here. Starting
// while already running is a no-op; there is never a second timer.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.playing {
		return
	}
	e.playing = true
	e.cancelTick = e.sched.Every(StepPeriod(e.tempo), e.advance)
}

// Stop halts stepping, rewinds the cursor to slot 0 and clears every
// in-flight active-step marker. Stopping when stopped is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = false
	cancel := e.cancelTick
	e.cancelTick = nil
	e.step = 0
	marked := make([]int, 0, len(e.markers))
	for i, cancelMarker := range e.markers {
		cancelMarker()
		marked = append(marked, i)
	}
	e.markers = make(map[int]func())
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if e.events != nil {
		sort.Ints(marked)
		for _, i := range marked {
			e.events.StepDeactivated(i)
		}
	}
}

// IsPlaying reports whether the transport is running
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// Step returns the cursor position: the next slot to sound
func (e *Engine) Step() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Len returns the grid size
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.slots)
}

// Tempo returns the current beats per minute
func (e *Engine) Tempo() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tempo
}

// Wave returns the current oscillator shape
func (e *Engine) Wave() synth.WaveType {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wave
}

// Graph returns the most recently plotted curve
func (e *Engine) Graph() []eval.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// advance is one sequencer tick: mark the slot, evaluate it, sound it,
// advance the cursor. Grid length is read at tick time, so a resize
// between ticks is safe.
func (e *Engine) advance() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	i := e.step
	expr := e.slots[i]
	wave := e.wave
	e.step = (e.step + 1) % len(e.slots)
	e.mu.Unlock()

	e.markStep(i)

	// Empty slots keep the beat but make no sound.
	if strings.TrimSpace(expr) == "" {
		return
	}

	result, err := eval.Evaluate(expr, float64(i))
	if err != nil {
		if e.events != nil {
			e.events.StepFailed(i, fmt.Errorf("step %d: %w", i+1, err))
		}
		return
	}

	if e.tone != nil {
		e.tone.Trigger(NoteFrequency(result.Magnitude()), wave)
	}
	e.updateGraph(expr)
}

// markStep lights slot i for markerDuration. A re-trigger of the same slot
// restarts its window instead of double-firing the deactivation.
func (e *Engine) markStep(i int) {
	if e.events == nil {
		return
	}
	e.mu.Lock()
	if cancelPrev, ok := e.markers[i]; ok {
		cancelPrev()
	}
	e.markers[i] = e.sched.After(markerDuration, func() {
		e.mu.Lock()
		if _, ok := e.markers[i]; !ok {
			// already cleared by Stop
			e.mu.Unlock()
			return
		}
		delete(e.markers, i)
		e.mu.Unlock()
		e.events.StepDeactivated(i)
	})
	e.mu.Unlock()
	e.events.StepActivated(i)
}

func (e *Engine) updateGraph(text string) {
	samples := eval.Graph(text)
	e.mu.Lock()
	e.graph = samples
	e.mu.Unlock()
	if e.events != nil {
		e.events.GraphUpdated(samples)
	}
}
