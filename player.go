package tabplay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	intaudio "github.com/cbegin/tabplay-go/internal/audio"
	intsched "github.com/cbegin/tabplay-go/internal/schedule"
	intsynth "github.com/cbegin/tabplay-go/internal/synth"
	inttab "github.com/cbegin/tabplay-go/internal/tab"
	inttuning "github.com/cbegin/tabplay-go/internal/tuning"
)

// PlaybackEvent carries playback and trigger events from Watch().
type PlaybackEvent struct {
	Kind     int // EventLoopCompleted, EventPlaybackEnded, or EventTrigger
	Index    int // step index for EventTrigger
	Position int // grid column for EventTrigger
	Pitches  []int
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
	EventTrigger
)

// NoteVelocity is the synth velocity of every plucked note.
const NoteVelocity = 100.0 / 127.0

var ErrNotLoaded = errors.New("no tab loaded")

// The synth ends its stream once a finished tab has rung out.
var _ intaudio.FinishingSource = (*intsynth.Engine)(nil)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	tuning       string
	tempo        float64
	loopPlayback bool
	timing       intsched.Timing
	metronome    bool
	device       *intaudio.Device
	logger       *zap.Logger
	clock        intsched.Clock
	parse        inttab.ParseOptions
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		tuning: "standard",
		tempo:  120,
		timing: intsched.DefaultTiming(),
	}
}

func WithTuning(name string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.tuning = name
	}
}

func WithTempo(bpm float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.tempo = bpm
	}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithNoteValue sets the length of one step: 4 for quarters, 8 for eighths.
func WithNoteValue(noteValue int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.timing.NoteValue = noteValue
	}
}

// WithSpacing chooses between evenly spaced steps and spacing taken from the
// grid, where columnsPerStep grid columns make one step.
func WithSpacing(spacing intsched.Spacing, columnsPerStep int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.timing.Spacing = spacing
		cfg.timing.ColumnsPerStep = columnsPerStep
	}
}

func WithMetronome(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.metronome = enabled
	}
}

// WithMultiDigitFrets makes Load read a run of digits as one fret, so "12"
// is fret 12 rather than frets 1 and 2.
func WithMultiDigitFrets(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.parse.MultiDigit = enabled
	}
}

// WithDevice shares an audio device between players. Without it the player
// opens its own ebiten-backed device.
func WithDevice(device *intaudio.Device) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.device = device
	}
}

func WithLogger(logger *zap.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.logger = logger
	}
}

// WithClock drives the scheduler from clock instead of wall time.
func WithClock(clock intsched.Clock) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.clock = clock
	}
}

type Player struct {
	mu         sync.Mutex
	sampleRate int
	cfg        playerConfig
	log        *zap.Logger
	device     *intaudio.Device
	engine     *intsynth.Engine
	baseGain   float64
	volume     float64
	table      inttuning.Table
	tab        *inttab.Tab
	sched      *intsched.Scheduler
	stream     intaudio.Stream
	session    string
	sessionSeq uint64 // scheduler session that closes done when it ends
	done       chan struct{}
	drainStop  chan struct{} // closes to abandon a pending ring-out release
	eventCh    chan PlaybackEvent
	eventChMu  sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	table, err := inttuning.Lookup(cfg.tuning)
	if err != nil {
		return nil, err
	}
	if !(cfg.tempo > 0) {
		return nil, intsched.ErrTempo
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.device == nil {
		cfg.device = intaudio.NewDevice(sampleRate, nil)
	}
	params := intsynth.DefaultParams()
	return &Player{
		sampleRate: sampleRate,
		cfg:        cfg,
		log:        cfg.logger,
		device:     cfg.device,
		engine:     intsynth.New(sampleRate, params),
		baseGain:   params.MasterGain,
		volume:     1,
		table:      table,
	}, nil
}

// Compile parses tab text and resolves it against the named tuning.
func Compile(text, tuningName string) ([]intsched.Step, error) {
	table, err := inttuning.Lookup(tuningName)
	if err != nil {
		return nil, err
	}
	t, err := inttab.Parse(text)
	if err != nil {
		return nil, err
	}
	return intsched.Resolve(t, table)
}

// Load parses and resolves text, replacing the current tab. Playback of the
// previous tab is stopped.
func (p *Player) Load(text string) error {
	p.mu.Lock()
	opts := p.cfg.parse
	p.mu.Unlock()
	t, err := inttab.ParseWith(text, opts)
	if err != nil {
		return err
	}
	return p.LoadTab(t)
}

func (p *Player) LoadTab(t *inttab.Tab) error {
	p.mu.Lock()
	table := p.table
	p.mu.Unlock()
	steps, err := intsched.Resolve(t, table)
	if err != nil {
		return err
	}
	if err := p.Stop(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	sched, err := p.newScheduler(steps, 0)
	if err != nil {
		return err
	}
	p.tab = t
	p.sched = sched
	p.log.Info("tab loaded",
		zap.Int("events", len(t.Events)),
		zap.Int("columns", t.Width),
		zap.String("tuning", p.cfg.tuning))
	return nil
}

// Tab returns the loaded tab, or nil.
func (p *Player) Tab() *inttab.Tab {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tab
}

// newScheduler builds a scheduler from the current settings. Callers hold p.mu.
func (p *Player) newScheduler(steps []intsched.Step, index int) (*intsched.Scheduler, error) {
	var sched *intsched.Scheduler
	sched, err := intsched.New(steps, intsched.Options{
		TempoBPM:  p.cfg.tempo,
		Looping:   p.cfg.loopPlayback,
		Timing:    p.cfg.timing,
		Metronome: p.cfg.metronome,
		Clock:     p.cfg.clock,
		Logger:    p.log,
		OnTrigger: p.onTrigger,
		OnClick:   p.engine.Click,
		OnEvent: func(ev intsched.Event) {
			p.onEvent(sched, ev)
		},
	})
	if err != nil {
		return nil, err
	}
	sched.Seek(index)
	return sched, nil
}

func (p *Player) onTrigger(tr intsched.Trigger) {
	for _, pitch := range tr.Pitches {
		p.engine.NoteOn(pitch, NoteVelocity, tr.Duration)
	}
	pitches := append([]int(nil), tr.Pitches...)
	p.sendEvent(PlaybackEvent{Kind: EventTrigger, Index: tr.Index, Position: tr.Position, Pitches: pitches})
}

func (p *Player) onEvent(sched *intsched.Scheduler, ev intsched.Event) {
	switch ev.Kind {
	case intsched.EventLoopCompleted:
		p.sendEvent(PlaybackEvent{Kind: EventLoopCompleted})
	case intsched.EventPlaybackEnded:
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		p.signalDone(sched, ev.Session)
	}
}

// Play starts or resumes playback from the current step. Calling Play while
// playing does nothing.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return ErrNotLoaded
	}
	if p.sched.State().Playing {
		return nil
	}
	if p.stopDrainLocked() {
		// The stream already hit its end; open a fresh one.
		_ = p.closeStreamLocked()
	}
	if err := p.openStreamLocked(); err != nil {
		return err
	}

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})
	p.session = uuid.NewString()
	st := p.sched.State()
	p.log.Info("playback started",
		zap.String("session", p.session),
		zap.Int("index", st.Index),
		zap.Float64("bpm", st.TempoBPM),
		zap.Bool("loop", st.Looping))
	p.sched.Play()
	p.sessionSeq = p.sched.State().Session
	return nil
}

// openStreamLocked acquires the device and starts the synth stream unless one
// is already running. Ringing notes from an earlier session keep sounding.
func (p *Player) openStreamLocked() error {
	if p.stream != nil {
		return nil
	}
	backend, err := p.device.Acquire()
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	stream, err := backend.NewStream(p.engine)
	if err != nil {
		_ = p.device.Release()
		return fmt.Errorf("open audio stream: %w", err)
	}
	stream.Play()
	p.stream = stream
	return nil
}

func (p *Player) closeStreamLocked() error {
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	if rerr := p.device.Release(); err == nil {
		err = rerr
	}
	return err
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// signalDone closes the Wait channel if seq is still the current session of
// the loaded scheduler. A session that ends after Play has started a newer
// one leaves the newer channel open.
func (p *Player) signalDone(sched *intsched.Scheduler, seq uint64) {
	p.mu.Lock()
	if p.sched != sched || p.sessionSeq != seq {
		p.mu.Unlock()
		return
	}
	done := p.done
	p.done = nil
	session := p.session
	p.startDrainLocked()
	p.mu.Unlock()
	p.log.Info("playback ended", zap.String("session", session))
	if done != nil {
		close(done)
	}
}

// startDrainLocked lets the last notes ring out, then closes the stream and
// releases the device unless Play or Stop intervenes.
func (p *Player) startDrainLocked() {
	if p.stream == nil {
		return
	}
	p.stopDrainLocked()
	stop := make(chan struct{})
	p.drainStop = stop
	go p.releaseWhenRung(p.stream, p.engine.Drain(), stop)
}

// stopDrainLocked abandons a pending release and reports whether the engine
// had already rung out.
func (p *Player) stopDrainLocked() bool {
	if p.drainStop != nil {
		close(p.drainStop)
		p.drainStop = nil
	}
	return p.engine.Undrain()
}

func (p *Player) releaseWhenRung(stream intaudio.Stream, rung <-chan struct{}, stop chan struct{}) {
	select {
	case <-rung:
	case <-stop:
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drainStop != stop || p.stream != stream {
		return
	}
	p.drainStop = nil
	p.engine.Undrain()
	if err := p.closeStreamLocked(); err != nil {
		p.log.Warn("release audio", zap.Error(err))
		return
	}
	p.log.Debug("audio released after ring-out")
}

// Stop halts playback, silences the synth and releases the audio device. The
// current step is kept so Play resumes from it.
func (p *Player) Stop() error {
	p.mu.Lock()
	sched := p.sched
	p.mu.Unlock()
	stopped := sched != nil && sched.Stop()

	p.mu.Lock()
	p.stopDrainLocked()
	p.engine.AllNotesOff()
	err := p.closeStreamLocked()
	done := p.done
	p.done = nil
	session := p.session
	p.mu.Unlock()
	if stopped {
		p.log.Info("playback stopped", zap.String("session", session))
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	}
	if done != nil {
		close(done)
	}
	return err
}

// Close stops playback. The player can still be used afterwards.
func (p *Player) Close() error {
	return p.Stop()
}

// Reset moves back to the first step.
func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched != nil {
		p.sched.Reset()
	}
}

// Seek moves to step idx.
func (p *Player) Seek(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched != nil {
		p.sched.Seek(idx)
	}
}

func (p *Player) SetTempo(bpm float64) error {
	if !(bpm > 0) {
		return intsched.ErrTempo
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.tempo = bpm
	if p.sched != nil {
		return p.sched.SetTempo(bpm)
	}
	return nil
}

func (p *Player) SetLooping(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.loopPlayback = enabled
	if p.sched != nil {
		p.sched.SetLooping(enabled)
	}
}

func (p *Player) SetMetronome(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.metronome = enabled
	if p.sched != nil {
		p.sched.SetMetronome(enabled)
	}
}

// SetTuning re-resolves the loaded tab against the named tuning. A playing
// tab continues from the same step.
func (p *Player) SetTuning(name string) error {
	table, err := inttuning.Lookup(name)
	if err != nil {
		return err
	}
	p.mu.Lock()
	t := p.tab
	old := p.sched
	p.mu.Unlock()
	if t == nil {
		p.mu.Lock()
		p.table = table
		p.cfg.tuning = name
		p.mu.Unlock()
		return nil
	}
	steps, err := intsched.Resolve(t, table)
	if err != nil {
		return err
	}

	wasPlaying := old.Stop()
	p.mu.Lock()
	index := old.State().Index
	sched, err := p.newScheduler(steps, index)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.table = table
	p.cfg.tuning = name
	p.sched = sched
	if wasPlaying {
		sched.Play()
		p.sessionSeq = sched.State().Session
	}
	p.mu.Unlock()
	p.log.Info("tuning changed", zap.String("tuning", name), zap.Bool("playing", wasPlaying))
	return nil
}

func (p *Player) Tuning() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.tuning
}

// State reports the scheduler state. Current is -1 when nothing has sounded.
func (p *Player) State() intsched.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched == nil {
		return intsched.State{TempoBPM: p.cfg.tempo, Looping: p.cfg.loopPlayback, Current: -1}
	}
	return p.sched.State()
}

// Plan returns the timed pitches of the loaded tab at the current tempo.
func (p *Player) Plan() (intsched.Plan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tab == nil {
		return intsched.Plan{}, ErrNotLoaded
	}
	steps, err := intsched.Resolve(p.tab, p.table)
	if err != nil {
		return intsched.Plan{}, err
	}
	return intsched.BuildPlan(steps, p.cfg.tempo, p.cfg.timing), nil
}

// Wait blocks until the current playback ends. When loop playback is enabled,
// Wait blocks until Stop (use Watch for loop-counting instead).
// Wait returns immediately if no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. Events are sent when:
//   - EventLoopCompleted: the tab wrapped around (when looping)
//   - EventPlaybackEnded: playback finished or was stopped
//   - EventTrigger: a step sounded (Index, Position, Pitches set)
//
// The channel is buffered (cap 8); events are dropped rather than block the
// scheduler. Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.engine.SetMasterGain(p.baseGain * p.volume)
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}
