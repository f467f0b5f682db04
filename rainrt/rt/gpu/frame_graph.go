package gpu

import (
	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
)

// Resource names shared by the frame graph passes.
const (
	ResParams    = "params"
	ResScreen    = "screen"
	ResGlyphUVs  = "glyph_uvs"
	ResAtlas     = "atlas"
	ResColumns   = "columns"
	ResInstances = "instances"
	ResColor     = "color"
	ResSwapchain = "swapchain"
)

// Pass names.
const (
	PassSimulate     = "simulate"
	PassHostSimulate = "host-simulate"
	PassDraw         = "draw"
	PassPresent      = "present"
)

type ExecFunc func(*graph.FrameContext) error

// Stages are the per-frame callbacks the frame graph is assembled from.
// A nil Present draws straight into the swapchain.
type Stages struct {
	Simulate       ExecFunc
	HostSimulation bool
	Draw           ExecFunc
	Present        ExecFunc
}

// PassTimer receives scope begin/end around every pass.
type PassTimer interface {
	BeginScope(name string)
	EndScope(name string)
}

// DrawTarget is the resource the draw stage renders into.
func (s Stages) DrawTarget() string {
	if s.Present != nil {
		return ResColor
	}
	return ResSwapchain
}

// BuildFrameGraph declares and compiles the per-frame pass graph. Resources
// written outside the graph (uniforms, atlas) are imported so the graph can
// run strict.
func BuildFrameGraph(s Stages, timer PassTimer) (*graph.Graph, error) {
	g := graph.New()
	g.Strict = true
	g.Import(ResParams, ResScreen, ResGlyphUVs, ResAtlas)

	if s.HostSimulation {
		g.AddPass(graph.Pass{
			Name:    PassHostSimulate,
			Kind:    graph.Compute,
			Reads:   []string{ResParams},
			Writes:  []string{ResInstances},
			Execute: timed(timer, PassHostSimulate, s.Simulate),
		})
	} else {
		g.AddPass(graph.Pass{
			Name:    PassSimulate,
			Kind:    graph.Compute,
			Reads:   []string{ResParams, ResGlyphUVs},
			Writes:  []string{ResColumns, ResInstances},
			Execute: timed(timer, PassSimulate, s.Simulate),
		})
	}

	g.AddPass(graph.Pass{
		Name:    PassDraw,
		Kind:    graph.Draw,
		Reads:   []string{ResInstances, ResAtlas, ResScreen},
		Writes:  []string{s.DrawTarget()},
		Execute: timed(timer, PassDraw, s.Draw),
	})

	if s.Present != nil {
		g.AddPass(graph.Pass{
			Name:    PassPresent,
			Kind:    graph.Present,
			Reads:   []string{ResColor},
			Writes:  []string{ResSwapchain},
			Execute: timed(timer, PassPresent, s.Present),
		})
	}

	if err := g.Compile(); err != nil {
		return nil, err
	}
	return g, nil
}

func timed(timer PassTimer, name string, fn ExecFunc) func(*graph.FrameContext) error {
	if fn == nil {
		return nil
	}
	if timer == nil {
		return fn
	}
	return func(fc *graph.FrameContext) error {
		timer.BeginScope(name)
		defer timer.EndScope(name)
		return fn(fc)
	}
}
