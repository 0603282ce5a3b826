package midifile

import (
	"fmt"
	"io"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/tabplay-go/internal/schedule"
)

const (
	TicksPerQuarter = 480
	Program         = 25 // acoustic guitar (steel), zero-based
	Velocity        = 100
	Channel         = 0
)

type noteEvent struct {
	tick uint32
	on   bool
	key  uint8
}

// Build converts a plan to a single-track Standard MIDI File.
func Build(plan schedule.Plan) (*smf.SMF, error) {
	if plan.TempoBPM <= 0 {
		return nil, fmt.Errorf("midi export: tempo %v is not positive", plan.TempoBPM)
	}
	quarter := schedule.Duration(plan.TempoBPM, 4)
	toTicks := func(d time.Duration) uint32 {
		return uint32(float64(d) / float64(quarter) * TicksPerQuarter)
	}

	events := make([]noteEvent, 0, len(plan.Triples)*2)
	for _, tr := range plan.Triples {
		if tr.Pitch < 0 || tr.Pitch > 127 {
			return nil, fmt.Errorf("midi export: pitch %d out of range", tr.Pitch)
		}
		start := toTicks(tr.Start)
		end := toTicks(tr.Start + tr.Duration)
		if end <= start {
			end = start + 1
		}
		events = append(events,
			noteEvent{tick: start, on: true, key: uint8(tr.Pitch)},
			noteEvent{tick: end, on: false, key: uint8(tr.Pitch)},
		)
	}
	// Offs sort before ons at the same tick so repeated pitches retrigger.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var track smf.Track
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(plan.TempoBPM))
	track.Add(0, midi.ProgramChange(Channel, Program))
	var last uint32
	for _, ev := range events {
		delta := ev.tick - last
		last = ev.tick
		if ev.on {
			track.Add(delta, midi.NoteOn(Channel, ev.key, Velocity))
		} else {
			track.Add(delta, midi.NoteOff(Channel, ev.key))
		}
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("midi export: %w", err)
	}
	return s, nil
}

// Write encodes plan as a Standard MIDI File to w.
func Write(w io.Writer, plan schedule.Plan) error {
	s, err := Build(plan)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("midi export: %w", err)
	}
	return nil
}
