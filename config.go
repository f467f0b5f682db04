package glyphrain

import (
	"errors"
	"fmt"
	"os"

	"github.com/gekko3d/glyphrain/rainrt/rt/core"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("invalid config")

// DefaultAlphabet covers glyphs present in the embedded Go Mono face.
var DefaultAlphabet = []string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"A", "B", "C", "D", "E", "F", "H", "K", "L", "M", "N", "P", "R", "T", "X", "Z",
	":", ".", "=", "*", "+", "-", "<", ">", "|", "\"", "¦", "ç",
	"Ж", "Ф", "Ψ", "λ", "Σ", "Ω",
}

// Config holds the init-time parameters. Nothing here changes while the
// animation runs; layout is recomputed from the viewport on resize only.
type Config struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`

	Alphabet   []string `toml:"alphabet"`
	FontPath   string   `toml:"font_path"`
	FontSize   float64  `toml:"font_size"`
	Padding    int      `toml:"padding"`
	MinPadding int      `toml:"min_padding"`

	MinTrail int `toml:"min_trail"`

	// Seed selects a deterministic column seed stream. Zero means crypto seeded.
	Seed           uint64 `toml:"seed"`
	HostSimulation bool   `toml:"host_simulation"`
	Present        bool   `toml:"present"`
	Debug          bool   `toml:"debug"`

	Simulation core.Tuning `toml:"simulation"`
}

func DefaultConfig() Config {
	return Config{
		Title:      "glyphrain",
		Width:      1280,
		Height:     720,
		Alphabet:   append([]string(nil), DefaultAlphabet...),
		FontSize:   20,
		Padding:    2,
		MinPadding: 0,
		MinTrail:   core.DefaultMinTrail,
		Present:    true,
		Simulation: core.DefaultTuning(),
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config %s: %w: %s", path, ErrInvalidConfig, strict.String())
		}
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case len(c.Alphabet) == 0:
		return fmt.Errorf("%w: alphabet is empty", ErrInvalidConfig)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.FontSize <= 0:
		return fmt.Errorf("%w: font size %v", ErrInvalidConfig, c.FontSize)
	case c.Padding < 0 || c.MinPadding < 0 || c.MinPadding > c.Padding:
		return fmt.Errorf("%w: padding %d (min %d)", ErrInvalidConfig, c.Padding, c.MinPadding)
	case c.MinTrail <= 0:
		return fmt.Errorf("%w: min trail %d", ErrInvalidConfig, c.MinTrail)
	}
	for i, g := range c.Alphabet {
		if g == "" {
			return fmt.Errorf("%w: alphabet entry %d is empty", ErrInvalidConfig, i)
		}
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
