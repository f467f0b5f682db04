package app

// MaxFrameDt caps the simulated time of one frame. Longer stalls (window
// drags, breakpoints) are clipped instead of fast-forwarding the rain.
const MaxFrameDt = 0.25

// frameClock turns absolute timestamps in seconds into per-frame deltas and
// a once-per-second FPS figure.
type frameClock struct {
	last    float64
	started bool

	frames  int
	elapsed float64
	fps     float64
}

// Tick returns the delta since the previous tick, zero on the first one,
// and reports whether a new FPS sample became available.
func (c *frameClock) Tick(now float64) (float32, bool) {
	if !c.started {
		c.started = true
		c.last = now
		return 0, false
	}
	dt := now - c.last
	c.last = now
	if dt < 0 {
		dt = 0
	}

	c.frames++
	c.elapsed += dt
	sampled := false
	if c.elapsed >= 1.0 {
		c.fps = float64(c.frames) / c.elapsed
		c.frames = 0
		c.elapsed = 0
		sampled = true
	}
	return float32(min(dt, MaxFrameDt)), sampled
}

func (c *frameClock) FPS() float64 {
	return c.fps
}
