package schedule

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	at      time.Time
	ch      chan time.Time
	fired   bool
	stopped bool
	clock   *manualClock
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(0, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm := &manualTimer{at: c.now.Add(d), ch: make(chan time.Time, 1), clock: c}
	c.timers = append(c.timers, tm)
	return tm
}

func (t *manualTimer) C() <-chan time.Time { return t.ch }

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.fired && !t.stopped
	t.stopped = true
	return wasPending
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	for _, tm := range c.timers {
		if !tm.fired && !tm.stopped && !tm.at.After(c.now) {
			tm.fired = true
			tm.ch <- c.now
		}
	}
}

func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, tm := range c.timers {
		if !tm.fired && !tm.stopped {
			n++
		}
	}
	return n
}

// waitPending blocks until exactly n timers are armed.
func (c *manualClock) waitPending(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.pending() != n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending timers (have %d)", n, c.pending())
		}
		time.Sleep(time.Millisecond)
	}
}

type recorder struct {
	triggers chan Trigger
	events   chan Event
	clicks   chan bool
}

func newRecorder() *recorder {
	return &recorder{
		triggers: make(chan Trigger, 64),
		events:   make(chan Event, 64),
		clicks:   make(chan bool, 64),
	}
}

func (r *recorder) options(clock Clock, bpm float64, loop bool) Options {
	return Options{
		TempoBPM:  bpm,
		Looping:   loop,
		Timing:    DefaultTiming(),
		Clock:     clock,
		OnTrigger: func(tr Trigger) { r.triggers <- tr },
		OnEvent:   func(ev Event) { r.events <- ev },
		OnClick:   func(down bool) { r.clicks <- down },
	}
}

func (r *recorder) nextTrigger(t *testing.T) Trigger {
	t.Helper()
	select {
	case tr := <-r.triggers:
		return tr
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for trigger")
	}
	return Trigger{}
}

func (r *recorder) nextEvent(t *testing.T) EventKind {
	t.Helper()
	return r.nextSessionEvent(t).Kind
}

func (r *recorder) nextSessionEvent(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func (r *recorder) expectNoTrigger(t *testing.T) {
	t.Helper()
	select {
	case tr := <-r.triggers:
		t.Fatalf("unexpected trigger for step %d", tr.Index)
	case <-time.After(20 * time.Millisecond):
	}
}

func fourSteps(t *testing.T) []Step {
	return mustSteps(t,
		"e|--0--1--2--3--|",
		"B|--------------|",
		"G|--------------|",
		"D|--------------|",
		"A|--------------|",
		"E|--------------|",
	)
}

func TestSchedulerRejectsBadTempo(t *testing.T) {
	if _, err := New(nil, Options{TempoBPM: 0}); err != ErrTempo {
		t.Fatalf("expected ErrTempo, got %v", err)
	}
	s, err := New(nil, Options{TempoBPM: 100})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.SetTempo(-5); err != ErrTempo {
		t.Fatalf("expected ErrTempo, got %v", err)
	}
}

func TestSchedulerPlaysInOrderThenEnds(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	s, err := New(fourSteps(t), rec.options(clock, 120, false))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !s.Play() {
		t.Fatalf("play should start a session")
	}
	done := s.Done()
	for i := 0; i < 4; i++ {
		tr := rec.nextTrigger(t)
		if tr.Index != i {
			t.Fatalf("trigger %d has index %d", i, tr.Index)
		}
		if tr.Offset != time.Duration(i)*250*time.Millisecond {
			t.Fatalf("trigger %d offset = %v", i, tr.Offset)
		}
		if tr.Pitches[0] != 64+i {
			t.Fatalf("trigger %d pitch = %d", i, tr.Pitches[0])
		}
		clock.waitPending(t, 1)
		clock.Advance(250 * time.Millisecond)
	}
	if ev := rec.nextEvent(t); ev != EventPlaybackEnded {
		t.Fatalf("expected playback ended, got %v", ev)
	}
	<-done
	st := s.State()
	if st.Playing {
		t.Fatalf("expected stopped after the last step")
	}
	if st.Index != 0 || st.Current != 3 {
		t.Fatalf("unexpected final state %+v", st)
	}
}

func TestSchedulerPlayIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	s, _ := New(fourSteps(t), rec.options(clock, 120, false))
	if !s.Play() {
		t.Fatalf("first play should start")
	}
	if s.Play() {
		t.Fatalf("second play should be a no-op")
	}
	seen := map[int]int{}
	for i := 0; i < 4; i++ {
		seen[rec.nextTrigger(t).Index]++
		clock.waitPending(t, 1)
		clock.Advance(250 * time.Millisecond)
	}
	rec.nextEvent(t)
	rec.expectNoTrigger(t)
	for idx, n := range seen {
		if n != 1 {
			t.Fatalf("step %d triggered %d times", idx, n)
		}
	}
}

func TestSchedulerStopThenResume(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	s, _ := New(fourSteps(t), rec.options(clock, 120, false))
	s.Play()
	if got := rec.nextTrigger(t).Index; got != 0 {
		t.Fatalf("first trigger = %d", got)
	}
	clock.waitPending(t, 1)
	clock.Advance(250 * time.Millisecond)
	if got := rec.nextTrigger(t).Index; got != 1 {
		t.Fatalf("second trigger = %d", got)
	}
	clock.waitPending(t, 1)

	if !s.Stop() {
		t.Fatalf("stop should end the session")
	}
	if s.Stop() {
		t.Fatalf("second stop should report nothing to stop")
	}
	st := s.State()
	if st.Playing || st.Index != 2 || st.Current != 1 {
		t.Fatalf("unexpected state after stop: %+v", st)
	}
	if clock.pending() != 0 {
		t.Fatalf("pending timer survived stop")
	}
	clock.Advance(time.Second)
	rec.expectNoTrigger(t)

	s.Play()
	if got := rec.nextTrigger(t).Index; got != 2 {
		t.Fatalf("resume triggered %d, want 2", got)
	}
	s.Stop()
}

func TestSchedulerResetRewinds(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	s, _ := New(fourSteps(t), rec.options(clock, 120, false))
	s.Play()
	rec.nextTrigger(t)
	clock.waitPending(t, 1)
	s.Stop()
	s.Reset()
	if st := s.State(); st.Index != 0 || st.Current != -1 {
		t.Fatalf("reset state = %+v", st)
	}
	s.Play()
	if got := rec.nextTrigger(t).Index; got != 0 {
		t.Fatalf("after reset triggered %d", got)
	}
	s.Stop()
}

func TestSchedulerLoops(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	steps := mustSteps(t,
		"e|-0-1-|",
		"B|-----|",
		"G|-----|",
		"D|-----|",
		"A|-----|",
		"E|-----|",
	)
	s, _ := New(steps, rec.options(clock, 120, true))
	s.Play()
	want := []int{0, 1, 0, 1, 0}
	for i, w := range want {
		if got := rec.nextTrigger(t).Index; got != w {
			t.Fatalf("trigger %d = step %d, want %d", i, got, w)
		}
		if i == 2 || i == 4 {
			if ev := rec.nextEvent(t); ev != EventLoopCompleted {
				t.Fatalf("expected loop completed, got %v", ev)
			}
		}
		clock.waitPending(t, 1)
		clock.Advance(250 * time.Millisecond)
	}
	if !s.State().Playing {
		t.Fatalf("looping playback should still be running")
	}
	s.SetLooping(false)
	rec.nextTrigger(t)
	clock.waitPending(t, 1)
	clock.Advance(250 * time.Millisecond)
	if ev := rec.nextEvent(t); ev != EventPlaybackEnded {
		t.Fatalf("expected playback ended after disabling loop, got %v", ev)
	}
	<-time.After(5 * time.Millisecond)
	s.Stop()
}

func TestSchedulerTempoChangeKeepsPendingTrigger(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	s, _ := New(fourSteps(t), rec.options(clock, 120, false))
	s.Play()
	rec.nextTrigger(t)
	clock.waitPending(t, 1)
	if err := s.SetTempo(60); err != nil {
		t.Fatalf("set tempo: %v", err)
	}
	clock.Advance(250 * time.Millisecond)
	tr := rec.nextTrigger(t)
	if tr.Index != 1 || tr.Offset != 250*time.Millisecond {
		t.Fatalf("pending trigger moved: %+v", tr)
	}
	if tr.Duration != 500*time.Millisecond {
		t.Fatalf("new tempo not applied to step 1 length: %v", tr.Duration)
	}
	clock.waitPending(t, 1)
	clock.Advance(499 * time.Millisecond)
	rec.expectNoTrigger(t)
	clock.Advance(time.Millisecond)
	if tr := rec.nextTrigger(t); tr.Offset != 750*time.Millisecond {
		t.Fatalf("step 2 offset = %v, want 750ms", tr.Offset)
	}
	s.Stop()
}

func TestSchedulerMetronomeDownbeats(t *testing.T) {
	defer goleak.VerifyNone(t)
	clock := newManualClock()
	rec := newRecorder()
	opts := rec.options(clock, 120, true)
	opts.Metronome = true
	steps := mustSteps(t,
		"e|-0-1-2-3-4-|",
		"B|-----------|",
		"G|-----------|",
		"D|-----------|",
		"A|-----------|",
		"E|-----------|",
	)
	s, _ := New(steps, opts)
	s.Play()
	var got []bool
	for i := 0; i < 5; i++ {
		rec.nextTrigger(t)
		select {
		case down := <-rec.clicks:
			got = append(got, down)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for click")
		}
		clock.waitPending(t, 1)
		clock.Advance(250 * time.Millisecond)
	}
	s.Stop()
	want := []bool{true, false, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("clicks = %v, want %v", got, want)
		}
	}
}

func TestSchedulerEmptySequenceEnds(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newRecorder()
	s, _ := New(nil, rec.options(newManualClock(), 120, true))
	s.Play()
	if ev := rec.nextEvent(t); ev != EventPlaybackEnded {
		t.Fatalf("expected playback ended, got %v", ev)
	}
	rec.expectNoTrigger(t)
	<-time.After(5 * time.Millisecond)
}

func TestSchedulerEventsCarrySession(t *testing.T) {
	defer goleak.VerifyNone(t)
	rec := newRecorder()
	s, _ := New(nil, rec.options(newManualClock(), 120, false))
	for want := uint64(1); want <= 2; want++ {
		if !s.Play() {
			t.Fatalf("play %d should start a session", want)
		}
		ev := rec.nextSessionEvent(t)
		if ev.Kind != EventPlaybackEnded || ev.Session != want {
			t.Fatalf("event = %+v, want ended for session %d", ev, want)
		}
		if got := s.State().Session; got != want {
			t.Fatalf("state session = %d, want %d", got, want)
		}
	}
	<-time.After(5 * time.Millisecond)
}
