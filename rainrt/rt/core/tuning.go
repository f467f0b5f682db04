package core

import (
	"errors"
	"fmt"
)

// Tuning is the init-time shape of the simulation: respawn ranges, energy
// model and brightness falloff.
type Tuning struct {
	LengthMin     uint32  `toml:"length_min"`
	LengthRange   uint32  `toml:"length_range"`
	SpeedMin      float32 `toml:"speed_min"`
	SpeedRange    float32 `toml:"speed_range"`
	EnergyPerCell float32 `toml:"energy_per_cell"`
	EnergyBaseMin float32 `toml:"energy_base_min"`
	EnergyBaseMax float32 `toml:"energy_base_max"`
	BaseHalfLife  float32 `toml:"base_half_life"`
	MinHalfLife   float32 `toml:"min_half_life"`
	SpeedFactor   float32 `toml:"speed_factor"`
	LengthFactor  float32 `toml:"length_factor"`
	TrailDecay    float32 `toml:"trail_decay"`
	HeadBoost     float32 `toml:"head_boost"`
	SmoothRandom  bool    `toml:"smooth_random"`
}

func DefaultTuning() Tuning {
	return Tuning{
		LengthMin:     6,
		LengthRange:   20,
		SpeedMin:      4,
		SpeedRange:    14,
		EnergyPerCell: 0.08,
		EnergyBaseMin: 0.6,
		EnergyBaseMax: 1.2,
		BaseHalfLife:  2.5,
		MinHalfLife:   0.25,
		SpeedFactor:   0.05,
		LengthFactor:  0.02,
		TrailDecay:    2.5,
		HeadBoost:     1.15,
	}
}

func (t Tuning) Validate() error {
	switch {
	case t.LengthMin == 0:
		return errors.New("length_min must be at least 1")
	case t.LengthRange == 0:
		return errors.New("length_range must be at least 1")
	case t.SpeedMin <= 0 || t.SpeedRange < 0:
		return fmt.Errorf("speed range [%v, %v) is invalid", t.SpeedMin, t.SpeedMin+t.SpeedRange)
	case t.EnergyPerCell <= 0:
		return errors.New("energy_per_cell must be positive")
	case t.EnergyBaseMin < 0 || t.EnergyBaseMax < t.EnergyBaseMin:
		return fmt.Errorf("energy base range [%v, %v] is invalid", t.EnergyBaseMin, t.EnergyBaseMax)
	case t.MinHalfLife <= 0 || t.BaseHalfLife < t.MinHalfLife:
		return fmt.Errorf("half-life %v (min %v) is invalid", t.BaseHalfLife, t.MinHalfLife)
	case t.SpeedFactor < 0 || t.LengthFactor < 0 || t.TrailDecay < 0:
		return errors.New("decay factors must not be negative")
	case t.HeadBoost < 1:
		return fmt.Errorf("head_boost %v must be >= 1", t.HeadBoost)
	}
	return nil
}

// MaxLength is the largest trail length a respawn can produce.
func (t Tuning) MaxLength() uint32 {
	return t.LengthMin + t.LengthRange - 1
}

// Params builds the per-frame uniform block for layout g.
func (t Tuning) Params(g GridLayout, glyphCount int, dt float32) SimParams {
	p := SimParams{
		Dt:            dt,
		Rows:          uint32(g.Rows),
		Cols:          uint32(g.Cols),
		MaxTrail:      uint32(g.MaxTrail),
		GlyphCount:    uint32(glyphCount),
		CellWidth:     g.CellWidth,
		CellHeight:    g.CellHeight,
		LengthMin:     t.LengthMin,
		LengthRange:   t.LengthRange,
		SpeedMin:      t.SpeedMin,
		SpeedRange:    t.SpeedRange,
		EnergyPerCell: t.EnergyPerCell,
		EnergyBaseMin: t.EnergyBaseMin,
		EnergyBaseMax: t.EnergyBaseMax,
		BaseHalfLife:  t.BaseHalfLife,
		MinHalfLife:   t.MinHalfLife,
		SpeedFactor:   t.SpeedFactor,
		LengthFactor:  t.LengthFactor,
		TrailDecay:    t.TrailDecay,
		HeadBoost:     t.HeadBoost,
	}
	if t.SmoothRandom {
		p.SmoothRandom = 1
	}
	return p
}
