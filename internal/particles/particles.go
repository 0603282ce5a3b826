package particles

import (
	"math"
	"math/rand"
)

type Particle struct {
	X, Y   float64
	VX, VY float64 // pixels per second
	Phase  float64 // drift phase, radians
	Size   float64
}

// Link joins two particles closer than the link distance. Alpha falls from
// 1 at zero distance to 0 at the limit.
type Link struct {
	A, B  int
	Alpha float64
}

// Field owns a set of particles drifting across a W x H area, wrapping at
// the edges. It is not safe for concurrent use; the caller ticks it from its
// frame loop.
type Field struct {
	W, H      float64
	Drift     float64 // amplitude of the sinusoidal sway, pixels per second
	particles []Particle
	clock     float64
}

// NewField scatters n particles using rng.
func NewField(n int, w, h float64, rng *rand.Rand) *Field {
	f := &Field{W: w, H: h, Drift: 12, particles: make([]Particle, n)}
	for i := range f.particles {
		f.particles[i] = Particle{
			X:     rng.Float64() * w,
			Y:     rng.Float64() * h,
			VX:    (rng.Float64() - 0.5) * 30,
			VY:    (rng.Float64() - 0.5) * 30,
			Phase: rng.Float64() * 2 * math.Pi,
			Size:  1 + rng.Float64()*2,
		}
	}
	return f
}

// Tick advances the field by dt seconds.
func (f *Field) Tick(dt float64) {
	f.clock += dt
	for i := range f.particles {
		p := &f.particles[i]
		sway := math.Sin(f.clock+p.Phase) * f.Drift
		p.X += (p.VX + sway) * dt
		p.Y += (p.VY + math.Cos(f.clock+p.Phase)*f.Drift*0.5) * dt
		p.X = wrap(p.X, f.W)
		p.Y = wrap(p.Y, f.H)
	}
}

// Resize changes the area, keeping particles inside it.
func (f *Field) Resize(w, h float64) {
	f.W, f.H = w, h
	for i := range f.particles {
		f.particles[i].X = wrap(f.particles[i].X, w)
		f.particles[i].Y = wrap(f.particles[i].Y, h)
	}
}

func (f *Field) Particles() []Particle { return f.particles }

// Links returns every pair closer than maxDist.
func (f *Field) Links(maxDist float64) []Link {
	var out []Link
	max2 := maxDist * maxDist
	for i := 0; i < len(f.particles); i++ {
		for j := i + 1; j < len(f.particles); j++ {
			dx := f.particles[i].X - f.particles[j].X
			dy := f.particles[i].Y - f.particles[j].Y
			d2 := dx*dx + dy*dy
			if d2 < max2 {
				out = append(out, Link{A: i, B: j, Alpha: 1 - math.Sqrt(d2)/maxDist})
			}
		}
	}
	return out
}

func wrap(v, limit float64) float64 {
	if limit <= 0 {
		return 0
	}
	v = math.Mod(v, limit)
	if v < 0 {
		v += limit
	}
	return v
}
