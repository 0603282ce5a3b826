package tabplay

import (
	"encoding/binary"
	"math"
	"testing"

	intsched "github.com/cbegin/tabplay-go/internal/schedule"
	inttab "github.com/cbegin/tabplay-go/internal/tab"
	inttuning "github.com/cbegin/tabplay-go/internal/tuning"
)

func exercisePlan(t *testing.T, name string) intsched.Plan {
	t.Helper()
	tb, err := inttab.Exercise(name)
	if err != nil {
		t.Fatalf("exercise: %v", err)
	}
	steps, err := intsched.Resolve(tb, inttuning.Standard)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return intsched.BuildPlan(steps, 120, intsched.DefaultTiming())
}

func TestRenderPlanProducesAudio(t *testing.T) {
	plan := exercisePlan(t, "default")
	samples := RenderPlan(plan, 48000, false)
	minFrames := int(plan.Length.Seconds() * 48000)
	if len(samples) < minFrames*2 {
		t.Fatalf("rendered %d samples, want at least %d", len(samples), minFrames*2)
	}
	var energy float64
	for _, s := range samples {
		if math.IsNaN(float64(s)) || math.Abs(float64(s)) > 1.5 {
			t.Fatalf("sample out of range: %v", s)
		}
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		t.Fatalf("rendered silence")
	}
}

func TestRenderPlanEmptyIsSilentTail(t *testing.T) {
	samples := RenderPlan(intsched.Plan{TempoBPM: 120}, 1000, true)
	if len(samples) != 800*2 {
		t.Fatalf("len = %d, want %d", len(samples), 1600)
	}
	for _, s := range samples {
		if s != 0 {
			t.Fatalf("expected silence")
		}
	}
}

func TestRenderPlanMetronomeAddsClicks(t *testing.T) {
	plan := exercisePlan(t, "chromatic")
	plain := RenderPlan(plan, 8000, false)
	clicked := RenderPlan(plan, 8000, true)
	if len(plain) != len(clicked) {
		t.Fatalf("length changed: %d vs %d", len(plain), len(clicked))
	}
	same := true
	for i := range plain {
		if plain[i] != clicked[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("metronome had no effect")
	}
}

func TestEncodeWAVFloat32LEHeader(t *testing.T) {
	wav := EncodeWAVFloat32LE([]float32{0.5, -0.5}, 44100, 2)
	if len(wav) != 52 {
		t.Fatalf("len = %d, want 52", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Fatalf("bad chunk ids")
	}
	if got := binary.LittleEndian.Uint16(wav[20:]); got != 3 {
		t.Fatalf("format = %d, want IEEE float", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:]); got != 44100 {
		t.Fatalf("sample rate = %d", got)
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(wav[48:])); got != -0.5 {
		t.Fatalf("second sample = %v", got)
	}
}
