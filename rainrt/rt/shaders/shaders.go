package shaders

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/naga"
)

//go:embed rain_sim.wgsl
var RainSimWGSL string

//go:embed glyph.wgsl
var GlyphWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

type Key string

const (
	RainSim    Key = "rain_sim"
	Glyph      Key = "glyph"
	Fullscreen Key = "fullscreen"
)

var sources = map[Key]string{
	RainSim:    RainSimWGSL,
	Glyph:      GlyphWGSL,
	Fullscreen: FullscreenWGSL,
}

// Source returns the WGSL for key.
func Source(key Key) (string, error) {
	src, ok := sources[key]
	if !ok {
		return "", fmt.Errorf("unknown shader %q", key)
	}
	return src, nil
}

// Validate compiles src with naga so that syntax and type errors surface at
// startup with their source location, before the driver sees the module.
func Validate(key Key, src string) error {
	if _, err := naga.Compile(src); err != nil {
		return fmt.Errorf("shader %s: %w", key, err)
	}
	return nil
}

// Load returns validated WGSL for key.
func Load(key Key) (string, error) {
	src, err := Source(key)
	if err != nil {
		return "", err
	}
	if err := Validate(key, src); err != nil {
		return "", err
	}
	return src, nil
}
