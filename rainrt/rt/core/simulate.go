package core

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// These mirror rain_sim.wgsl exactly; the shader and this file must change together.
const (
	LCGMultiplier       uint32 = 1664525
	LCGIncrement        uint32 = 1013904223
	GlyphHashMultiplier uint32 = 747796405

	ln2 float32 = 0.6931472
)

// LCG advances a 32-bit linear congruential state by one step.
func LCG(seed uint32) uint32 {
	return seed*LCGMultiplier + LCGIncrement
}

// UnitFromSeed maps bits 16..31 of seed to [0, 1).
func UnitFromSeed(seed uint32) float32 {
	return float32((seed>>16)&0xffff) / 65536
}

// RandomScalar derives the respawn scalar from an already advanced seed.
// Smooth mode averages four chained slices; the caller's seed is not advanced further.
func RandomScalar(seed uint32, smooth bool) float32 {
	if !smooth {
		return UnitFromSeed(seed)
	}
	s := seed
	sum := UnitFromSeed(s)
	for i := 0; i < 3; i++ {
		s = LCG(s)
		sum += UnitFromSeed(s)
	}
	return sum * 0.25
}

// GlyphIndex picks the glyph for trail position t without touching the column seed.
func GlyphIndex(seed uint32, t uint32, glyphCount uint32) uint32 {
	if glyphCount == 0 {
		return 0
	}
	h := LCG(seed + t*GlyphHashMultiplier)
	return (h >> 16) % glyphCount
}

// HalfLife shortens with speed and length, never below MinHalfLife.
func HalfLife(p SimParams, speed float32, length uint32) float32 {
	hl := p.BaseHalfLife / (1 + p.SpeedFactor*speed) / (1 + p.LengthFactor*float32(length))
	return math32.Max(p.MinHalfLife, hl)
}

// StepColumn advances one column by p.Dt and reports whether it respawned.
func StepColumn(c *ColumnState, p SimParams) bool {
	rows := float32(p.Rows)
	c.Head += c.Speed * p.Dt

	if c.Head >= rows {
		c.Head -= rows
		if c.Head >= rows {
			// dt spikes (debugger pauses, window drags) may cover several screens.
			c.Head = math32.Mod(c.Head, rows)
		}
		c.Seed = LCG(c.Seed)
		r := RandomScalar(c.Seed, p.SmoothRandom != 0)
		c.Length = p.LengthMin + uint32(math32.Floor(r*float32(p.LengthRange)))
		c.Speed = p.SpeedMin + r*p.SpeedRange
		base := p.EnergyBaseMin + (p.EnergyBaseMax-p.EnergyBaseMin)*r
		c.Energy = math32.Min(base, float32(c.Length)*p.EnergyPerCell)
		return true
	}

	hl := HalfLife(p, c.Speed, c.Length)
	c.Energy *= math32.Exp(-ln2 / hl * p.Dt)
	c.Energy = clamp(c.Energy, 0, float32(c.Length)*p.EnergyPerCell)
	return false
}

// EmitInstances writes the column's maxTrail slots starting at column*maxTrail.
// Live trail slots get glyph records; the remainder are zeroed so a trail
// that shrank on respawn leaves nothing stale behind.
func EmitInstances(column int, c ColumnState, p SimParams, uvs []mgl32.Vec4, out []InstanceRecord) {
	maxTrail := int(p.MaxTrail)
	base := column * maxTrail
	emitted := min(int(c.Length), maxTrail)
	rows := int32(p.Rows)
	headRow := int32(math32.Floor(c.Head))
	denom := float32(max(1, int(c.Length)-1))
	cw, ch := p.CellWidth, p.CellHeight

	for t := 0; t < emitted; t++ {
		row := headRow - int32(t)
		if row < 0 {
			row = (row%rows + rows) % rows
		}

		var uv mgl32.Vec4
		if g := GlyphIndex(c.Seed, uint32(t), p.GlyphCount); int(g) < len(uvs) {
			uv = uvs[g]
		}

		b := c.Energy * math32.Exp(-p.TrailDecay*float32(t)/denom)
		if t == 0 {
			b *= p.HeadBoost
		}

		out[base+t] = InstanceRecord{
			Offset:     mgl32.Vec2{float32(column) * cw, float32(row) * ch},
			CellSize:   mgl32.Vec2{cw, ch},
			UVRect:     uv,
			Brightness: math32.Max(b, 0),
		}
	}
	for t := emitted; t < maxTrail; t++ {
		out[base+t] = InstanceRecord{}
	}
}

// Simulate runs one tick over every column, like one compute dispatch.
func Simulate(cols []ColumnState, p SimParams, uvs []mgl32.Vec4, out []InstanceRecord) {
	for i := range cols {
		StepColumn(&cols[i], p)
		EmitInstances(i, cols[i], p, uvs, out)
	}
}

// HostSimulation runs the simulation on the CPU, for devices or debugging
// sessions where the compute stage is bypassed.
type HostSimulation struct {
	Columns   []ColumnState
	Instances []InstanceRecord
	UVs       []mgl32.Vec4
}

func NewHostSimulation(g GridLayout, cols []ColumnState, uvs []mgl32.Vec4) *HostSimulation {
	return &HostSimulation{
		Columns:   cols,
		Instances: make([]InstanceRecord, g.InstanceCount),
		UVs:       uvs,
	}
}

func (h *HostSimulation) Step(p SimParams) {
	Simulate(h.Columns, p, h.UVs, h.Instances)
}

func clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(v, hi))
}
