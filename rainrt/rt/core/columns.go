package core

import (
	crand "crypto/rand"
	"math/rand/v2"
	"time"
)

// NewRand returns the column initialization stream. A zero seed draws a
// ChaCha8 key from crypto/rand, falling back to a clock-seeded PCG when the
// system source is unavailable; any other seed is fully deterministic.
func NewRand(seed uint64) *rand.Rand {
	if seed != 0 {
		return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	var key [32]byte
	if _, err := crand.Read(key[:]); err != nil {
		now := uint64(time.Now().UnixNano())
		return rand.New(rand.NewPCG(now, now>>7|1))
	}
	return rand.New(rand.NewChaCha8(key))
}

// InitColumns populates one ColumnState per grid column. Energy starts at
// zero; a column lights up on its first respawn.
func InitColumns(g GridLayout, t Tuning, rng *rand.Rand) []ColumnState {
	cols := make([]ColumnState, g.Cols)
	rows := float32(g.Rows)
	for i := range cols {
		head := rng.Float32() * rows
		if head >= rows {
			head = 0
		}
		cols[i] = ColumnState{
			Head:   head,
			Speed:  t.SpeedMin + rng.Float32()*t.SpeedRange,
			Length: t.LengthMin + uint32(rng.Float32()*float32(t.LengthRange)),
			Seed:   rng.Uint32(),
		}
		if cols[i].Length > t.MaxLength() {
			cols[i].Length = t.MaxLength()
		}
	}
	return cols
}

// ColumnArrays is the struct-of-arrays form uploaded to storage buffers.
type ColumnArrays struct {
	Heads    []float32
	Speeds   []float32
	Lengths  []uint32
	Seeds    []uint32
	Energies []float32
}

func SplitColumns(cols []ColumnState) ColumnArrays {
	a := ColumnArrays{
		Heads:    make([]float32, len(cols)),
		Speeds:   make([]float32, len(cols)),
		Lengths:  make([]uint32, len(cols)),
		Seeds:    make([]uint32, len(cols)),
		Energies: make([]float32, len(cols)),
	}
	for i, c := range cols {
		a.Heads[i] = c.Head
		a.Speeds[i] = c.Speed
		a.Lengths[i] = c.Length
		a.Seeds[i] = c.Seed
		a.Energies[i] = c.Energy
	}
	return a
}

// ColumnField names one of the five column storage arrays, in binding order.
type ColumnField int

const (
	FieldHead ColumnField = iota
	FieldSpeed
	FieldLength
	FieldSeed
	FieldEnergy
	NumColumnFields
)

var columnFieldNames = [...]string{"heads", "speeds", "lengths", "seeds", "energies"}

func (f ColumnField) String() string {
	if f < 0 || f >= NumColumnFields {
		return "unknown"
	}
	return columnFieldNames[f]
}

// Bytes returns each array packed little-endian, indexed by ColumnField.
func (a ColumnArrays) Bytes() [NumColumnFields][]byte {
	var out [NumColumnFields][]byte
	out[FieldHead] = pack(a.Heads)
	out[FieldSpeed] = pack(a.Speeds)
	out[FieldLength] = pack(a.Lengths)
	out[FieldSeed] = pack(a.Seeds)
	out[FieldEnergy] = pack(a.Energies)
	return out
}

// ColumnFieldSize is the per-column byte size of every column array.
const ColumnFieldSize = 4
