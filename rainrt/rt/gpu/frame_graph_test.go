package gpu

import (
	"errors"
	"testing"

	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	ran    []string
	scopes []string
}

func (r *recorder) exec(name string) ExecFunc {
	return func(*graph.FrameContext) error {
		r.ran = append(r.ran, name)
		return nil
	}
}

func (r *recorder) BeginScope(name string) { r.scopes = append(r.scopes, "+"+name) }
func (r *recorder) EndScope(name string)   { r.scopes = append(r.scopes, "-"+name) }

func TestFrameGraphWithPresent(t *testing.T) {
	var r recorder
	s := Stages{Simulate: r.exec("sim"), Draw: r.exec("draw"), Present: r.exec("present")}
	g, err := BuildFrameGraph(s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{PassSimulate, PassDraw, PassPresent}, g.Order())
	assert.Equal(t, ResColor, s.DrawTarget())

	require.NoError(t, g.Execute(graph.NewFrameContext(nil, 0.016, 0)))
	assert.Equal(t, []string{"sim", "draw", "present"}, r.ran)
}

func TestFrameGraphDirectToSwapchain(t *testing.T) {
	var r recorder
	s := Stages{Simulate: r.exec("sim"), Draw: r.exec("draw")}
	g, err := BuildFrameGraph(s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{PassSimulate, PassDraw}, g.Order())
	assert.Equal(t, ResSwapchain, s.DrawTarget())
}

func TestFrameGraphHostSimulation(t *testing.T) {
	var r recorder
	s := Stages{Simulate: r.exec("host"), HostSimulation: true, Draw: r.exec("draw"), Present: r.exec("present")}
	g, err := BuildFrameGraph(s, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{PassHostSimulate, PassDraw, PassPresent}, g.Order())
}

func TestFrameGraphTimerWrapsEveryPass(t *testing.T) {
	var r recorder
	s := Stages{Simulate: r.exec("sim"), Draw: r.exec("draw"), Present: r.exec("present")}
	g, err := BuildFrameGraph(s, &r)
	require.NoError(t, err)
	require.NoError(t, g.Execute(graph.NewFrameContext(nil, 0.016, 1)))
	assert.Equal(t, []string{
		"+" + PassSimulate, "-" + PassSimulate,
		"+" + PassDraw, "-" + PassDraw,
		"+" + PassPresent, "-" + PassPresent,
	}, r.scopes)
}

func TestFrameGraphPassErrorAbortsFrame(t *testing.T) {
	var r recorder
	boom := errors.New("device lost")
	s := Stages{
		Simulate: func(*graph.FrameContext) error { return boom },
		Draw:     r.exec("draw"),
	}
	g, err := BuildFrameGraph(s, nil)
	require.NoError(t, err)
	err = g.Execute(graph.NewFrameContext(nil, 0.016, 0))
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.ran)
}

func TestFrameGraphMissingStagePanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = BuildFrameGraph(Stages{}, nil) })
}
