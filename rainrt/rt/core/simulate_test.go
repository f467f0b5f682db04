package core

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUVs(n int) []mgl32.Vec4 {
	uvs := make([]mgl32.Vec4, n)
	for i := range uvs {
		f := float32(i) / float32(n)
		uvs[i] = mgl32.Vec4{f, 0, f + 1/float32(n), 1}
	}
	return uvs
}

func TestLCG(t *testing.T) {
	assert.Equal(t, uint32(1013904223), LCG(0))
	assert.Equal(t, uint32(1015568748), LCG(1))
	// wraps modulo 2^32
	assert.Equal(t, uint32(1012239698), LCG(0xffffffff))
}

func TestRandomScalar(t *testing.T) {
	assert.Equal(t, float32(0), UnitFromSeed(0x0000ffff))
	assert.Equal(t, float32(0.5), UnitFromSeed(0x80000000))
	assert.Less(t, UnitFromSeed(0xffffffff), float32(1))

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		s := rng.Uint32()
		for _, smooth := range []bool{false, true} {
			r := RandomScalar(s, smooth)
			assert.GreaterOrEqual(t, r, float32(0))
			assert.Less(t, r, float32(1))
		}
	}
}

func TestStepColumn_Wrap(t *testing.T) {
	p := DefaultTuning().Params(NewGridLayout(40, 200, 10, 10, 8), 16, 0)
	rows := float32(p.Rows)
	c := ColumnState{Head: rows - 0.01, Speed: 7, Length: 10, Seed: 42, Energy: 0.3}
	p.Dt = 0.25
	expected := (c.Head + c.Speed*p.Dt) - rows

	respawned := StepColumn(&c, p)
	require.True(t, respawned)
	assert.InDelta(t, expected, c.Head, 1e-5)
	assert.Equal(t, LCG(42), c.Seed)
}

func TestStepColumn_MultiWrapStaysInRange(t *testing.T) {
	p := DefaultTuning().Params(NewGridLayout(40, 100, 10, 10, 8), 16, 10)
	c := ColumnState{Head: 5, Speed: 15, Length: 8, Seed: 7}
	StepColumn(&c, p)
	assert.GreaterOrEqual(t, c.Head, float32(0))
	assert.Less(t, c.Head, float32(p.Rows))
}

func TestStepColumn_EnergyDecay(t *testing.T) {
	p := DefaultTuning().Params(NewGridLayout(40, 1000, 10, 10, 8), 16, 0.1)
	c := ColumnState{Head: 0, Speed: 4, Length: 10, Seed: 1, Energy: 0.5}
	hl := HalfLife(p, c.Speed, c.Length)
	StepColumn(&c, p)
	assert.InDelta(t, 0.5*math32.Exp(-ln2/hl*0.1), c.Energy, 1e-6)

	// one half-life halves energy
	c = ColumnState{Head: 0, Speed: 4, Length: 10, Seed: 1, Energy: 0.5}
	p.Dt = hl
	StepColumn(&c, p)
	assert.InDelta(t, 0.25, c.Energy, 1e-5)
}

func TestHalfLife(t *testing.T) {
	p := DefaultTuning().Params(GridLayout{}, 0, 0)
	slow := HalfLife(p, 1, 5)
	fast := HalfLife(p, 20, 5)
	long := HalfLife(p, 1, 40)
	assert.Less(t, fast, slow)
	assert.Less(t, long, slow)

	p.SpeedFactor = 100
	assert.Equal(t, p.MinHalfLife, HalfLife(p, 100, 100))
}

// Grid cols=4, rows=10, maxTrail=10; column 0 at head 9.5, speed 2, length 5.
func TestSimulate_EndToEnd(t *testing.T) {
	g := NewGridLayout(40, 100, 10, 10, 10)
	require.Equal(t, 4, g.Cols)
	require.Equal(t, 10, g.Rows)
	require.Equal(t, 10, g.MaxTrail)

	tun := DefaultTuning()
	const s0 uint32 = 0xdeadbeef
	cols := []ColumnState{
		{Head: 9.5, Speed: 2.0, Length: 5, Seed: s0},
		{Head: 1, Speed: 1, Length: 3, Seed: 1},
		{Head: 2, Speed: 1, Length: 3, Seed: 2},
		{Head: 3, Speed: 1, Length: 3, Seed: 3},
	}
	uvs := testUVs(8)
	out := make([]InstanceRecord, g.InstanceCount)
	p := tun.Params(g, len(uvs), 0.5)

	Simulate(cols, p, uvs, out)

	c := cols[0]
	s1 := LCG(s0)
	r := UnitFromSeed(s1)
	wantLen := tun.LengthMin + uint32(math32.Floor(r*float32(tun.LengthRange)))
	wantSpeed := tun.SpeedMin + r*tun.SpeedRange
	wantEnergy := math32.Min(tun.EnergyBaseMin+(tun.EnergyBaseMax-tun.EnergyBaseMin)*r, float32(wantLen)*tun.EnergyPerCell)

	assert.Equal(t, float32(0.5), c.Head)
	assert.Equal(t, s1, c.Seed)
	assert.Equal(t, wantLen, c.Length)
	assert.InDelta(t, wantSpeed, c.Speed, 1e-6)
	assert.InDelta(t, wantEnergy, c.Energy, 1e-6)

	require.Len(t, out, 40)
	emitted := min(int(wantLen), g.MaxTrail)
	for tt := 0; tt < emitted; tt++ {
		rec := out[tt]
		row := (0 - tt + 10) % 10
		assert.Equal(t, mgl32.Vec2{0, float32(row) * 10}, rec.Offset, "slot %d", tt)
		assert.Equal(t, mgl32.Vec2{10, 10}, rec.CellSize)
		assert.Equal(t, uvs[GlyphIndex(s1, uint32(tt), 8)], rec.UVRect)
	}
	for tt := emitted; tt < g.MaxTrail; tt++ {
		assert.Equal(t, InstanceRecord{}, out[tt], "slot %d should be cleared", tt)
	}
}

func TestEmitInstances_RowWrapAndBrightness(t *testing.T) {
	g := NewGridLayout(20, 100, 10, 10, 10)
	p := DefaultTuning().Params(g, 4, 0)
	c := ColumnState{Head: 1.2, Length: 5, Seed: 99, Energy: 0.4}
	out := make([]InstanceRecord, g.InstanceCount)

	EmitInstances(1, c, p, testUVs(4), out)

	base := 1 * g.MaxTrail
	wantRows := []float32{1, 0, 9, 8, 7}
	for i, row := range wantRows {
		assert.Equal(t, mgl32.Vec2{10, row * 10}, out[base+i].Offset, "trail %d", i)
	}
	assert.InDelta(t, 0.4*p.HeadBoost, out[base].Brightness, 1e-6)
	assert.InDelta(t, 0.4*math32.Exp(-p.TrailDecay), out[base+4].Brightness, 1e-6)
	for i := 1; i < 5; i++ {
		assert.Less(t, out[base+i].Brightness, out[base+i-1].Brightness)
	}
	// column 0 untouched
	for i := 0; i < g.MaxTrail; i++ {
		assert.Equal(t, InstanceRecord{}, out[i])
	}
}

func TestEmitInstances_ClearsShrunkTrail(t *testing.T) {
	g := NewGridLayout(10, 100, 10, 10, 10)
	p := DefaultTuning().Params(g, 4, 0)
	out := make([]InstanceRecord, g.InstanceCount)

	EmitInstances(0, ColumnState{Head: 9, Length: 10, Seed: 5, Energy: 1}, p, testUVs(4), out)
	for i := 0; i < 10; i++ {
		assert.Greater(t, out[i].Brightness, float32(0))
	}

	EmitInstances(0, ColumnState{Head: 0.5, Length: 3, Seed: 6, Energy: 1}, p, testUVs(4), out)
	for i := 3; i < 10; i++ {
		assert.Equal(t, InstanceRecord{}, out[i])
	}
}

func TestEmitInstances_SingleCellTrailHasNoNaN(t *testing.T) {
	g := NewGridLayout(10, 100, 10, 10, 10)
	p := DefaultTuning().Params(g, 4, 0)
	out := make([]InstanceRecord, g.InstanceCount)
	EmitInstances(0, ColumnState{Head: 3, Length: 1, Seed: 5, Energy: 0.2}, p, testUVs(4), out)
	assert.False(t, math32.IsNaN(out[0].Brightness))
	assert.InDelta(t, 0.2*p.HeadBoost, out[0].Brightness, 1e-6)
}

func TestGlyphIndex_StableAndSeedLocal(t *testing.T) {
	for tt := uint32(0); tt < 20; tt++ {
		a := GlyphIndex(1234, tt, 37)
		assert.Equal(t, a, GlyphIndex(1234, tt, 37))
		assert.Less(t, a, uint32(37))
	}
	assert.Equal(t, uint32(0), GlyphIndex(1234, 3, 0))
}

func runSimulation(seed uint64, dts []float32) ([]byte, []byte) {
	g := NewGridLayout(320, 240, 8, 12, 8)
	tun := DefaultTuning()
	tun.SmoothRandom = true
	cols := InitColumns(g, tun, NewRand(seed))
	sim := NewHostSimulation(g, cols, testUVs(16))
	for _, dt := range dts {
		sim.Step(tun.Params(g, 16, dt))
	}
	arrays := SplitColumns(sim.Columns).Bytes()
	return bytes.Join(arrays[:], nil), InstanceBytes(sim.Instances)
}

func TestSimulate_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	dts := make([]float32, 300)
	for i := range dts {
		dts[i] = rng.Float32() * 0.1
	}
	colsA, instA := runSimulation(77, dts)
	colsB, instB := runSimulation(77, dts)
	assert.True(t, bytes.Equal(colsA, colsB), "column state differs between runs")
	assert.True(t, bytes.Equal(instA, instB), "instance array differs between runs")

	colsC, _ := runSimulation(78, dts)
	assert.False(t, bytes.Equal(colsA, colsC))
}

func TestSimulate_InvariantsUnderFuzz(t *testing.T) {
	g := NewGridLayout(640, 360, 8, 12, 8)
	tun := DefaultTuning()
	rng := rand.New(rand.NewPCG(3, 4))
	cols := InitColumns(g, tun, NewRand(5))
	// Start some columns lit so decay is exercised from the first tick.
	for i := range cols {
		cols[i].Energy = float32(cols[i].Length) * tun.EnergyPerCell * rng.Float32()
	}
	uvs := testUVs(10)
	out := make([]InstanceRecord, g.InstanceCount)

	for tick := 0; tick < 400; tick++ {
		p := tun.Params(g, len(uvs), rng.Float32())
		Simulate(cols, p, uvs, out)
		require.Len(t, out, g.Cols*g.MaxTrail)
		for i, c := range cols {
			require.GreaterOrEqual(t, c.Energy, float32(0), "col %d tick %d", i, tick)
			require.LessOrEqual(t, c.Energy, float32(c.Length)*tun.EnergyPerCell, "col %d tick %d", i, tick)
			require.GreaterOrEqual(t, c.Length, tun.LengthMin)
			require.LessOrEqual(t, c.Length, tun.LengthMin+tun.LengthRange)
			require.GreaterOrEqual(t, c.Head, float32(0))
			require.Less(t, c.Head, float32(g.Rows))
		}
		for _, rec := range out {
			require.GreaterOrEqual(t, rec.Brightness, float32(0))
			require.False(t, math32.IsNaN(rec.Brightness))
		}
	}
}

func TestInstanceCountIndependentOfLength(t *testing.T) {
	g := NewGridLayout(80, 50, 10, 10, 12)
	cols := []ColumnState{}
	for i := 0; i < g.Cols; i++ {
		cols = append(cols, ColumnState{Head: 1, Speed: 1, Length: uint32(1 + i), Seed: uint32(i)})
	}
	sim := NewHostSimulation(g, cols, testUVs(3))
	sim.Step(DefaultTuning().Params(g, 3, 0.01))
	assert.Len(t, sim.Instances, g.Cols*g.MaxTrail)
}
