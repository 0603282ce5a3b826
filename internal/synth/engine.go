package synth

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const twoPi = math.Pi * 2

type Params struct {
	Voices      int
	MasterGain  float64
	Detune      float64 // ratio of the second oscillator
	AttackSec   float64
	DecaySec    float64 // attack end to the decay floor
	PeakLevel   float64
	DecayLevel  float64
	FloorLevel  float64 // level at the end of a note, then the voice is freed
	MinSustain  float64 // seconds a note rings at least
	SustainMul  float64 // note length multiplier for ring time
	ClickSec    float64
	ClickLevel  float64
	ClickHighHz float64 // downbeat
	ClickLowHz  float64
}

func DefaultParams() Params {
	return Params{
		Voices:      24,
		MasterGain:  0.3,
		Detune:      1.003,
		AttackSec:   0.005,
		DecaySec:    0.1,
		PeakLevel:   0.3,
		DecayLevel:  0.1,
		FloorLevel:  0.001,
		MinSustain:  0.8,
		SustainMul:  1.5,
		ClickSec:    0.05,
		ClickLevel:  0.1,
		ClickHighHz: 1000,
		ClickLowHz:  800,
	}
}

type voiceKind int

const (
	voicePluck voiceKind = iota
	voiceClick
)

type voice struct {
	active   bool
	kind     voiceKind
	id       int
	age      int // frames since note on
	length   int // frames until the voice is freed
	freq     float64
	phaseA   float64
	phaseB   float64
	velocity float64
}

// Engine is a polyphonic plucked-string synth. NoteOn and Click may be called
// from any goroutine; Process runs on the audio thread.
type Engine struct {
	mu         sync.Mutex
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	dcPrevIn   float64
	dcPrevOut  float64
	draining   bool
	drained    chan struct{}
}

func New(sampleRate int, params Params) *Engine {
	if params.Voices <= 0 {
		params.Voices = 24
	}
	if params.Detune <= 0 {
		params.Detune = 1
	}
	return &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Voices),
		masterGain: math.Float64bits(params.MasterGain),
	}
}

// Frequency converts a MIDI pitch to Hz with A4 (69) at 440.
func Frequency(pitch int) float64 {
	return 440 * math.Pow(2, float64(pitch-69)/12)
}

// NoteOn starts a pluck of pitch. duration is the scheduled note length;
// the string keeps ringing past it.
func (e *Engine) NoteOn(pitch int, velocity float64, duration time.Duration) int {
	ring := math.Max(duration.Seconds()*e.params.SustainMul, e.params.MinSustain)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.start(voice{
		kind:     voicePluck,
		freq:     Frequency(pitch),
		velocity: clamp(velocity, 0, 1),
		length:   int(ring * e.sampleRate),
	})
}

// Click plays a metronome tick, higher on the downbeat.
func (e *Engine) Click(downbeat bool) {
	freq := e.params.ClickLowHz
	if downbeat {
		freq = e.params.ClickHighHz
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.start(voice{
		kind:     voiceClick,
		freq:     freq,
		velocity: 1,
		length:   int(e.params.ClickSec * e.sampleRate),
	})
}

// AllNotesOff silences every voice immediately.
func (e *Engine) AllNotesOff() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.voices {
		e.voices[i].active = false
	}
}

func (e *Engine) start(v voice) int {
	e.draining = false
	e.drained = nil
	slot := e.stealVoice()
	v.active = true
	v.id = e.nextID
	e.nextID++
	if v.length < 1 {
		v.length = 1
	}
	e.voices[slot] = v
	return v.id
}

// Process renders interleaved stereo frames into dst.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = e.renderFrame()
	}
	e.checkDrainedLocked()
}

// Drain starts winding the engine down. Once every voice has rung out
// Finished reports true and the returned channel is closed. A NoteOn, Click
// or Undrain before then cancels the drain and the channel never closes.
func (e *Engine) Drain() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.draining || e.drained == nil {
		e.drained = make(chan struct{})
	}
	e.draining = true
	ch := e.drained
	e.checkDrainedLocked()
	return ch
}

// Undrain cancels a drain and reports whether it had already finished.
func (e *Engine) Undrain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	finished := e.draining && e.idleLocked()
	e.draining = false
	e.drained = nil
	return finished
}

// Finished reports whether a drain has completed. A stream reading the
// engine ends when it does.
func (e *Engine) Finished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draining && e.idleLocked()
}

func (e *Engine) checkDrainedLocked() {
	if e.draining && e.drained != nil && e.idleLocked() {
		close(e.drained)
		e.drained = nil
	}
}

func (e *Engine) idleLocked() bool {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].age < e.voices[i].length {
			return false
		}
	}
	return true
}

func (e *Engine) renderFrame() (float32, float32) {
	gain := e.masterGainValue()
	var sum float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		if v.age >= v.length {
			v.active = false
			continue
		}
		t := float64(v.age) / e.sampleRate
		var sig float64
		switch v.kind {
		case voiceClick:
			sig = e.clickEnv(t) * math.Sin(twoPi*v.phaseA)
			v.phaseA = advance(v.phaseA, v.freq/e.sampleRate)
		default:
			dtA := v.freq / e.sampleRate
			dtB := v.freq * e.params.Detune / e.sampleRate
			saw := 2*v.phaseA - 1 - polyBLEP(v.phaseA, dtA)
			tri := 2*math.Abs(2*v.phaseB-1) - 1
			v.phaseA = advance(v.phaseA, dtA)
			v.phaseB = advance(v.phaseB, dtB)
			sig = 0.5 * (saw + tri) * e.pluckEnv(t, float64(v.length)/e.sampleRate) * v.velocity
		}
		v.age++
		sum += sig
	}
	out := clamp(e.dcBlock(sum*gain), -1, 1)
	return float32(out), float32(out)
}

// pluckEnv is a 5 ms linear attack followed by two exponential segments:
// peak to the decay level, then down to the floor at the end of the note.
func (e *Engine) pluckEnv(t, length float64) float64 {
	p := e.params
	switch {
	case t < p.AttackSec:
		return p.PeakLevel * t / p.AttackSec
	case t < p.DecaySec:
		frac := (t - p.AttackSec) / (p.DecaySec - p.AttackSec)
		return p.PeakLevel * math.Pow(p.DecayLevel/p.PeakLevel, frac)
	case length > p.DecaySec:
		frac := (t - p.DecaySec) / (length - p.DecaySec)
		return p.DecayLevel * math.Pow(p.FloorLevel/p.DecayLevel, frac)
	}
	return p.FloorLevel
}

func (e *Engine) clickEnv(t float64) float64 {
	p := e.params
	return p.ClickLevel * math.Pow(p.FloorLevel/p.ClickLevel, t/p.ClickSec)
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	oldest, oldestAge := 0, -1
	for i := range e.voices {
		if e.voices[i].age > oldestAge {
			oldest = i
			oldestAge = e.voices[i].age
		}
	}
	return oldest
}

func (e *Engine) dcBlock(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevIn + r*e.dcPrevOut
	e.dcPrevIn = x
	e.dcPrevOut = y
	return y
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) MasterGain() float64 { return e.masterGainValue() }

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}

// ActiveVoiceCount returns the number of voices still sounding.
func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].age < e.voices[i].length {
			n++
		}
	}
	return n
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func advance(phase, dt float64) float64 {
	phase += dt
	if phase >= 1 {
		phase -= 1
	}
	return phase
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
