package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

var ErrLayoutMismatch = errors.New("host/device layout mismatch")

const (
	SimParamsSize      = 96
	InstanceRecordSize = 48
	ScreenSizeSize     = 16
	UVRectSize         = 16
)

// SimParams matches the WGSL uniform block `SimParams`.
//
//	dt             f32  -- 0
//	rows           u32  -- 4
//	cols           u32  -- 8
//	max_trail      u32  -- 12
//	glyph_count    u32  -- 16
//	cell_width     f32  -- 20
//	cell_height    f32  -- 24
//	length_min     u32  -- 28
//	length_range   u32  -- 32
//	speed_min      f32  -- 36
//	speed_range    f32  -- 40
//	energy_per_cell f32 -- 44
//	energy_base_min f32 -- 48
//	energy_base_max f32 -- 52
//	base_half_life f32  -- 56
//	min_half_life  f32  -- 60
//	speed_factor   f32  -- 64
//	length_factor  f32  -- 68
//	trail_decay    f32  -- 72
//	head_boost     f32  -- 76
//	smooth_random  u32  -- 80
//	pad x3              -- 84..96
type SimParams struct {
	Dt            float32 `wgsl:"dt"`
	Rows          uint32  `wgsl:"rows"`
	Cols          uint32  `wgsl:"cols"`
	MaxTrail      uint32  `wgsl:"max_trail"`
	GlyphCount    uint32  `wgsl:"glyph_count"`
	CellWidth     float32 `wgsl:"cell_width"`
	CellHeight    float32 `wgsl:"cell_height"`
	LengthMin     uint32  `wgsl:"length_min"`
	LengthRange   uint32  `wgsl:"length_range"`
	SpeedMin      float32 `wgsl:"speed_min"`
	SpeedRange    float32 `wgsl:"speed_range"`
	EnergyPerCell float32 `wgsl:"energy_per_cell"`
	EnergyBaseMin float32 `wgsl:"energy_base_min"`
	EnergyBaseMax float32 `wgsl:"energy_base_max"`
	BaseHalfLife  float32 `wgsl:"base_half_life"`
	MinHalfLife   float32 `wgsl:"min_half_life"`
	SpeedFactor   float32 `wgsl:"speed_factor"`
	LengthFactor  float32 `wgsl:"length_factor"`
	TrailDecay    float32 `wgsl:"trail_decay"`
	HeadBoost     float32 `wgsl:"head_boost"`
	SmoothRandom  uint32  `wgsl:"smooth_random"`
	Pad0          uint32  `wgsl:"_pad0"`
	Pad1          uint32  `wgsl:"_pad1"`
	Pad2          uint32  `wgsl:"_pad2"`
}

// InstanceRecord is one drawn glyph quad. Stride 48, 16-byte aligned.
type InstanceRecord struct {
	Offset     mgl32.Vec2 `wgsl:"offset"`
	CellSize   mgl32.Vec2 `wgsl:"cell_size"`
	UVRect     mgl32.Vec4 `wgsl:"uv_rect"`
	Brightness float32    `wgsl:"brightness"`
	Pad0       float32    `wgsl:"_pad0"`
	Pad1       float32    `wgsl:"_pad1"`
	Pad2       float32    `wgsl:"_pad2"`
}

type ScreenSize struct {
	Width  float32 `wgsl:"width"`
	Height float32 `wgsl:"height"`
	Pad0   float32 `wgsl:"_pad0"`
	Pad1   float32 `wgsl:"_pad1"`
}

// ColumnState is the host view of one column. On the device the same data
// lives as five parallel arrays, see ColumnArrays.
type ColumnState struct {
	Head   float32
	Speed  float32
	Length uint32
	Seed   uint32
	Energy float32
}

func (p SimParams) Bytes() []byte      { return pack(p) }
func (s ScreenSize) Bytes() []byte     { return pack(s) }
func (r InstanceRecord) Bytes() []byte { return pack(r) }

// InstanceBytes packs records back to back in device layout.
func InstanceBytes(records []InstanceRecord) []byte {
	return pack(records)
}

func pack(v any) []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(v))
	if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("pack %T: %v", v, err))
	}
	return buf.Bytes()
}

// CheckLayouts validates every host struct shared with the shaders: 32-bit
// scalar fields only, expected size, 16-byte multiple.
func CheckLayouts() error {
	for _, c := range []struct {
		v    any
		size int
	}{
		{SimParams{}, SimParamsSize},
		{InstanceRecord{}, InstanceRecordSize},
		{ScreenSize{}, ScreenSizeSize},
	} {
		if err := checkStruct(c.v, c.size); err != nil {
			return err
		}
	}
	return nil
}

func checkStruct(v any, want int) error {
	t := reflect.TypeOf(v)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		ft := f.Type
		if ft.Kind() == reflect.Array {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Float32, reflect.Uint32, reflect.Int32:
		default:
			return fmt.Errorf("%w: %s.%s has non 32-bit type %s", ErrLayoutMismatch, t.Name(), f.Name, f.Type)
		}
	}
	size := binary.Size(v)
	if size != want || int(t.Size()) != want {
		return fmt.Errorf("%w: %s is %d bytes (in-memory %d), want %d", ErrLayoutMismatch, t.Name(), size, t.Size(), want)
	}
	if size%16 != 0 {
		return fmt.Errorf("%w: %s size %d not a multiple of 16", ErrLayoutMismatch, t.Name(), size)
	}
	return nil
}

// CheckWGSLStruct lowers src with naga and compares the struct declaration
// name against the host struct v: member names (via `wgsl` tags), order,
// offsets, member sizes and total span. Explicit @size and @align attributes
// are honored because the offsets come from the shader compiler itself.
func CheckWGSLStruct(src, name string, v any) error {
	ast, err := naga.Parse(src)
	if err != nil {
		return fmt.Errorf("%w: parse shader for %s: %v", ErrLayoutMismatch, name, err)
	}
	mod, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return fmt.Errorf("%w: lower shader for %s: %v", ErrLayoutMismatch, name, err)
	}
	st, ok := findStruct(mod, name)
	if !ok {
		return fmt.Errorf("%w: struct %s not found in shader", ErrLayoutMismatch, name)
	}

	t := reflect.TypeOf(v)
	if len(st.Members) != t.NumField() {
		return fmt.Errorf("%w: %s has %d members in shader, %d on host", ErrLayoutMismatch, name, len(st.Members), t.NumField())
	}
	for i, m := range st.Members {
		f := t.Field(i)
		if tag := f.Tag.Get("wgsl"); tag != m.Name {
			return fmt.Errorf("%w: %s member %d is %q in shader, %q on host", ErrLayoutMismatch, name, i, m.Name, tag)
		}
		if uintptr(m.Offset) != f.Offset {
			return fmt.Errorf("%w: %s.%s at offset %d in shader, %d on host", ErrLayoutMismatch, name, m.Name, m.Offset, f.Offset)
		}
		if size, ok := irTypeSize(mod, m.Type); ok && uintptr(size) != f.Type.Size() {
			return fmt.Errorf("%w: %s.%s is %d bytes in shader, %d on host", ErrLayoutMismatch, name, m.Name, size, f.Type.Size())
		}
	}
	if uintptr(st.Span) != t.Size() {
		return fmt.Errorf("%w: %s is %d bytes in shader, %d on host", ErrLayoutMismatch, name, st.Span, t.Size())
	}
	return nil
}

func findStruct(mod *ir.Module, name string) (ir.StructType, bool) {
	for _, ty := range mod.Types {
		if ty.Name != name {
			continue
		}
		if st, ok := ty.Inner.(ir.StructType); ok {
			return st, true
		}
	}
	return ir.StructType{}, false
}

// irTypeSize reports the byte size of scalar, vector and matrix members.
// Other member types are covered by the offset and span checks.
func irTypeSize(mod *ir.Module, h ir.TypeHandle) (uint32, bool) {
	if int(h) >= len(mod.Types) {
		return 0, false
	}
	switch inner := mod.Types[h].Inner.(type) {
	case ir.ScalarType:
		return uint32(inner.Width), true
	case ir.VectorType:
		return uint32(inner.Size) * uint32(inner.Scalar.Width), true
	case ir.MatrixType:
		// Columns are padded to vec4 alignment when rows == 3.
		rows := uint32(inner.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint32(inner.Columns) * rows * uint32(inner.Scalar.Width), true
	}
	return 0, false
}

// GridLayout is derived from viewport size and cell metrics only.
type GridLayout struct {
	Cols          int
	Rows          int
	MaxTrail      int
	InstanceCount int
	CellWidth     float32
	CellHeight    float32
	PixelWidth    int
	PixelHeight   int
}

const DefaultMinTrail = 8

func NewGridLayout(pixelW, pixelH int, cellW, cellH float32, minTrail int) GridLayout {
	g := GridLayout{CellWidth: cellW, CellHeight: cellH, PixelWidth: pixelW, PixelHeight: pixelH}
	if pixelW <= 0 || pixelH <= 0 || cellW <= 0 || cellH <= 0 {
		return g
	}
	g.Cols = int(float32(pixelW) / cellW)
	rows := float32(pixelH) / cellH
	g.Rows = int(rows)
	if float32(g.Rows) < rows {
		g.Rows++
	}
	g.MaxTrail = max(minTrail, g.Rows)
	g.InstanceCount = g.Cols * g.MaxTrail
	return g
}

// Empty reports a layout with nothing to simulate (minimized window, or a
// viewport narrower than one cell).
func (g GridLayout) Empty() bool {
	return g.Cols == 0 || g.Rows == 0
}

func (g GridLayout) String() string {
	return fmt.Sprintf("%dx%d cells, maxTrail %d, %d instances", g.Cols, g.Rows, g.MaxTrail, g.InstanceCount)
}
