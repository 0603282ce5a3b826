package schedule

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind identifies scheduler lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventLoopCompleted:
		return "loop_completed"
	case EventPlaybackEnded:
		return "playback_ended"
	}
	return "unknown"
}

// Event is a lifecycle event of the session numbered Session.
type Event struct {
	Kind    EventKind
	Session uint64
}

// Trigger is delivered when a step is due.
type Trigger struct {
	Step
	Offset   time.Duration // since the session started
	Duration time.Duration // until the next step is due
}

// State is a snapshot of playback. Index is the next step to trigger;
// Current is the step that last sounded, or -1.
type State struct {
	TempoBPM float64
	Looping  bool
	Playing  bool
	Index    int
	Current  int
	Session  uint64 // number of the most recently started session
}

type Options struct {
	TempoBPM  float64
	Looping   bool
	Timing    Timing
	Metronome bool
	Clock     Clock
	Logger    *zap.Logger
	OnTrigger func(Trigger)
	OnEvent   func(Event)
	OnClick   func(downbeat bool) // metronome tick, once per step
}

// ErrTempo is returned for a tempo that is not a positive number.
var ErrTempo = errors.New("tempo must be a positive number of beats per minute")

// Scheduler plays a step sequence on a clock. Callbacks run on the
// scheduler's goroutine and must not call Stop.
type Scheduler struct {
	mu        sync.Mutex
	steps     []Step
	timing    Timing
	clock     Clock
	log       *zap.Logger
	state     State
	metronome bool
	beat      int
	session   *session
	onTrigger func(Trigger)
	onEvent   func(Event)
	onClick   func(bool)
}

type session struct {
	id     uint64
	cancel chan struct{}
	done   chan struct{}
}

func New(steps []Step, opts Options) (*Scheduler, error) {
	if !(opts.TempoBPM > 0) {
		return nil, ErrTempo
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Scheduler{
		steps:     steps,
		timing:    opts.Timing.normalized(),
		clock:     opts.Clock,
		log:       opts.Logger,
		metronome: opts.Metronome,
		onTrigger: opts.OnTrigger,
		onEvent:   opts.OnEvent,
		onClick:   opts.OnClick,
		state: State{
			TempoBPM: opts.TempoBPM,
			Looping:  opts.Looping,
			Current:  -1,
		},
	}, nil
}

// Play starts a session from the current index. It returns false, doing
// nothing, when a session is already running.
func (s *Scheduler) Play() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		return false
	}
	if s.state.Index < 0 || s.state.Index > len(s.steps) {
		s.state.Index = 0
	}
	s.state.Session++
	sess := &session{id: s.state.Session, cancel: make(chan struct{}), done: make(chan struct{})}
	s.session = sess
	s.state.Playing = true
	s.log.Debug("playback started",
		zap.Int("index", s.state.Index),
		zap.Int("steps", len(s.steps)),
		zap.Float64("bpm", s.state.TempoBPM))
	go s.run(sess)
	return true
}

// Stop cancels the running session. Once Stop returns no further trigger
// fires. The index is kept so a later Play resumes where this one left off.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	s.session = nil
	s.state.Playing = false
	close(sess.cancel)
	idx := s.state.Index
	s.mu.Unlock()
	<-sess.done
	s.log.Debug("playback stopped", zap.Int("index", idx))
	return true
}

// Reset moves the cursor back to the first step.
func (s *Scheduler) Reset() { s.Seek(0) }

// Seek moves the cursor to step idx, clamped to the sequence. A running
// session picks it up at its next trigger.
func (s *Scheduler) Seek(idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx > len(s.steps) {
		idx = len(s.steps)
	}
	s.state.Index = idx
	s.state.Current = -1
	s.beat = 0
}

// SetTempo changes the tempo for steps not yet scheduled. The pending
// trigger keeps its time.
func (s *Scheduler) SetTempo(bpm float64) error {
	if !(bpm > 0) {
		return ErrTempo
	}
	s.mu.Lock()
	s.state.TempoBPM = bpm
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) SetLooping(on bool) {
	s.mu.Lock()
	s.state.Looping = on
	s.mu.Unlock()
}

func (s *Scheduler) SetMetronome(on bool) {
	s.mu.Lock()
	s.metronome = on
	s.mu.Unlock()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Len() int { return len(s.steps) }

// Done returns a channel closed when the running session exits, or nil when
// stopped.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	return s.session.done
}

func (s *Scheduler) run(sess *session) {
	defer close(sess.done)
	start := s.clock.Now()
	var next time.Duration
	for {
		if !s.waitUntil(sess, start.Add(next)) {
			return
		}

		s.mu.Lock()
		if s.session != sess {
			s.mu.Unlock()
			return
		}
		looped := false
		if s.state.Index >= len(s.steps) {
			if !s.state.Looping || len(s.steps) == 0 {
				s.session = nil
				s.state.Playing = false
				s.state.Index = 0
				s.beat = 0
				s.mu.Unlock()
				s.log.Debug("playback ended")
				s.emit(sess, EventPlaybackEnded)
				return
			}
			s.state.Index = 0
			s.beat = 0
			looped = true
		}
		idx := s.state.Index
		step := s.steps[idx]
		length := Duration(s.state.TempoBPM, s.timing.NoteValue)
		length = time.Duration(float64(length) * s.timing.steps(s.steps, idx))
		s.state.Index = idx + 1
		s.state.Current = idx
		click, downbeat := s.metronome, s.beat%4 == 0
		s.beat++
		s.mu.Unlock()

		if looped {
			s.emit(sess, EventLoopCompleted)
		}
		if s.onTrigger != nil {
			s.onTrigger(Trigger{Step: step, Offset: next, Duration: length})
		}
		if click && s.onClick != nil {
			s.onClick(downbeat)
		}
		next += length
	}
}

// waitUntil blocks until the clock reaches at or the session is cancelled.
func (s *Scheduler) waitUntil(sess *session, at time.Time) bool {
	wait := at.Sub(s.clock.Now())
	if wait <= 0 {
		select {
		case <-sess.cancel:
			return false
		default:
			return true
		}
	}
	timer := s.clock.NewTimer(wait)
	select {
	case <-sess.cancel:
		timer.Stop()
		return false
	case <-timer.C():
		select {
		case <-sess.cancel:
			return false
		default:
			return true
		}
	}
}

func (s *Scheduler) emit(sess *session, kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(Event{Kind: kind, Session: sess.id})
	}
}
