package tabplay

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	intsched "github.com/cbegin/tabplay-go/internal/schedule"
	intsynth "github.com/cbegin/tabplay-go/internal/synth"
)

// RenderPlan synthesizes plan into interleaved stereo samples. The output
// runs past the plan's length until the last note has rung out. With
// metronome set every step also gets a click.
func RenderPlan(plan intsched.Plan, sampleRate int, metronome bool) []float32 {
	params := intsynth.DefaultParams()
	engine := intsynth.New(sampleRate, params)

	triples := append([]intsched.Triple(nil), plan.Triples...)
	sort.SliceStable(triples, func(i, j int) bool { return triples[i].Start < triples[j].Start })

	tail := time.Duration(params.MinSustain * float64(time.Second))
	for _, tr := range triples {
		ring := time.Duration(float64(tr.Duration) * params.SustainMul)
		if end := tr.Start + max(ring, tail); end > plan.Length+tail {
			tail = end - plan.Length
		}
	}
	frames := toFrames(plan.Length+tail, sampleRate)
	out := make([]float32, frames*2)

	cursor := 0
	lastStep, beat := -1, 0
	for _, tr := range triples {
		at := min(toFrames(tr.Start, sampleRate), frames)
		if at > cursor {
			engine.Process(out[cursor*2 : at*2])
			cursor = at
		}
		if metronome && tr.Index != lastStep {
			engine.Click(beat%4 == 0)
			beat++
		}
		lastStep = tr.Index
		engine.NoteOn(tr.Pitch, NoteVelocity, tr.Duration)
	}
	if cursor < frames {
		engine.Process(out[cursor*2:])
	}
	return out
}

func toFrames(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
