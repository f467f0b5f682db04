package gpu

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain"
	"github.com/gekko3d/glyphrain/rainrt/rt/core"
	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
	"github.com/gekko3d/glyphrain/rainrt/rt/shaders"
)

type RendererOptions struct {
	SurfaceFormat  wgpu.TextureFormat
	Atlas          *core.Atlas
	Tuning         core.Tuning
	MinTrail       int
	Seed           uint64
	Present        bool
	HostSimulation bool
	Timer          PassTimer
}

// Renderer owns the device-scoped pipelines and the current epoch.
type Renderer struct {
	Device    *wgpu.Device
	Queue     *wgpu.Queue
	Lifetimes *Lifetimes
	Buffers   *BufferManager

	Sim     *SimPass
	Draw    *DrawPass
	Present *PresentPass

	Epoch *Epoch
	Host  *core.HostSimulation

	opts       RendererOptions
	rng        *rand.Rand
	idle       Idler
	generation uint64
	frame      uint64
	log        glyphrain.Logger
}

// CheckShaderLayouts verifies that every host struct shared with a shader
// matches both its Go memory layout and its WGSL declaration.
func CheckShaderLayouts() error {
	if err := core.CheckLayouts(); err != nil {
		return err
	}
	for _, c := range []struct {
		src  string
		name string
		v    any
	}{
		{shaders.RainSimWGSL, "SimParams", core.SimParams{}},
		{shaders.RainSimWGSL, "InstanceRecord", core.InstanceRecord{}},
		{shaders.GlyphWGSL, "InstanceRecord", core.InstanceRecord{}},
		{shaders.GlyphWGSL, "ScreenSize", core.ScreenSize{}},
	} {
		if err := core.CheckWGSLStruct(c.src, c.name, c.v); err != nil {
			return err
		}
	}
	return nil
}

func NewRenderer(device *wgpu.Device, lt *Lifetimes, opts RendererOptions, log glyphrain.Logger) (*Renderer, error) {
	if opts.Atlas == nil {
		return nil, errors.New("renderer needs a glyph atlas")
	}
	if err := CheckShaderLayouts(); err != nil {
		return nil, err
	}

	r := &Renderer{
		Device:    device,
		Queue:     device.GetQueue(),
		Lifetimes: lt,
		opts:      opts,
		rng:       core.NewRand(opts.Seed),
		idle:      DeviceIdler{Device: device},
		log:       glyphrain.OrNop(log),
	}

	var err error
	r.Buffers, err = NewBufferManager(device, lt, r.log)
	if err != nil {
		return nil, err
	}
	if err := r.Buffers.UploadAtlas(opts.Atlas); err != nil {
		return nil, err
	}

	if !opts.HostSimulation {
		src, err := shaders.Load(shaders.RainSim)
		if err != nil {
			return nil, err
		}
		if r.Sim, err = NewSimPass(device, lt.Device, src); err != nil {
			return nil, err
		}
	}

	drawFormat := opts.SurfaceFormat
	if opts.Present {
		drawFormat = OffscreenFormat
		src, err := shaders.Load(shaders.Fullscreen)
		if err != nil {
			return nil, err
		}
		if r.Present, err = NewPresentPass(device, lt.Device, src, opts.SurfaceFormat); err != nil {
			return nil, err
		}
	}
	src, err := shaders.Load(shaders.Glyph)
	if err != nil {
		return nil, err
	}
	if r.Draw, err = NewDrawPass(device, lt.Device, src, drawFormat); err != nil {
		return nil, err
	}

	r.log.Infof("renderer ready: %d glyphs, cell %dx%d, present=%v, host-sim=%v",
		r.Buffers.GlyphCount, opts.Atlas.CellWidth, opts.Atlas.CellHeight, opts.Present, opts.HostSimulation)
	return r, nil
}

// Resize retires the current epoch once the GPU is idle and builds the next
// one at the new size. A zero-area viewport leaves no epoch; frames are
// skipped until the next non-empty resize.
func (r *Renderer) Resize(width, height int) error {
	if r.Epoch != nil {
		r.Epoch.Retire(r.idle)
		r.Epoch = nil
		r.Host = nil
		r.unbind()
	}

	a := r.opts.Atlas
	layout := core.NewGridLayout(width, height, float32(a.CellWidth), float32(a.CellHeight), r.opts.MinTrail)
	if layout.Empty() {
		r.log.Debugf("resize to %dx%d: empty grid, rendering paused", width, height)
		return nil
	}

	r.generation++
	e := NewEpoch(r.generation, layout, r.Lifetimes, r.log)
	if err := r.buildEpoch(e, width, height); err != nil {
		e.Retire(r.idle)
		r.unbind()
		return fmt.Errorf("resize to %dx%d: %w", width, height, err)
	}
	r.Epoch = e
	r.log.Infof("epoch %d: %s", e.Generation, layout)
	return nil
}

func (r *Renderer) buildEpoch(e *Epoch, width, height int) error {
	scope := r.Lifetimes.Surface
	cols := core.InitColumns(e.Layout, r.opts.Tuning, r.rng)

	var err error
	if r.Sim != nil {
		if e.Columns, err = r.Buffers.AllocateColumns(scope, cols); err != nil {
			return err
		}
	}
	if e.Instances, err = r.Buffers.AllocateInstances(scope, e.Layout.InstanceCount); err != nil {
		return err
	}
	if r.Present != nil {
		if e.ColorTex, e.ColorView, err = r.Buffers.AllocateColorTarget(scope, width, height); err != nil {
			return err
		}
	}
	r.Buffers.UpdateScreen(width, height)

	e.SetBinder(func(s *Scope) error {
		if r.Sim != nil {
			if err := r.Sim.Bind(r.Device, s, r.Buffers, e); err != nil {
				return err
			}
		}
		if err := r.Draw.Bind(r.Device, s, r.Buffers, e); err != nil {
			return err
		}
		if r.Present != nil {
			return r.Present.Bind(r.Device, s, r.Buffers, e)
		}
		return nil
	})
	if err := e.Rebuild(r.idle); err != nil {
		return err
	}

	stages := Stages{Draw: r.Draw.Execute, HostSimulation: r.Sim == nil}
	if r.Sim != nil {
		stages.Simulate = r.Sim.Execute
	} else {
		r.Host = core.NewHostSimulation(e.Layout, cols, r.opts.Atlas.UVs)
		hp := &HostSimPass{
			Sim:       r.Host,
			Params:    func(dt float32) core.SimParams { return r.params(e.Layout, dt) },
			Buffers:   r.Buffers,
			Instances: e.Instances,
		}
		stages.Simulate = hp.Execute
	}
	if r.Present != nil {
		stages.Present = r.Present.Execute
	}
	r.Draw.Target = stages.DrawTarget()

	e.Graph, err = BuildFrameGraph(stages, r.opts.Timer)
	if err != nil {
		return err
	}
	r.log.Debugf("epoch %d graph: %s", e.Generation, e.Graph)
	return nil
}

// Rebuild recreates the current epoch's bind groups without touching its buffers.
func (r *Renderer) Rebuild() error {
	if r.Epoch == nil {
		return nil
	}
	return r.Epoch.Rebuild(r.idle)
}

func (r *Renderer) unbind() {
	if r.Sim != nil {
		r.Sim.BindGroup = nil
	}
	r.Draw.BindGroup = nil
	if r.Present != nil {
		r.Present.BindGroup = nil
	}
}

func (r *Renderer) params(layout core.GridLayout, dt float32) core.SimParams {
	return r.opts.Tuning.Params(layout, r.Buffers.GlyphCount, dt)
}

// Render records and submits one frame into target. Per-frame objects go into
// the frame scope; the caller ends the frame after presenting.
func (r *Renderer) Render(target *wgpu.TextureView, dt float32) error {
	e := r.Epoch
	if e == nil {
		return nil
	}
	r.Buffers.UpdateParams(r.params(e.Layout, dt))

	encoder, err := r.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Frame"})
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	r.Lifetimes.Frame.Track(CommandEncoderResource("FrameEncoder", encoder))

	fc := graph.NewFrameContext(encoder, dt, r.frame)
	bindFrame(fc, r.Buffers, e, target)

	if err := e.Execute(fc); err != nil {
		return err
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish frame %d: %w", r.frame, err)
	}
	r.Lifetimes.Frame.Track(CommandBufferResource("FrameCommands", cmd))
	r.Queue.Submit(cmd)
	r.frame++
	return nil
}

// bindFrame resolves every frame graph resource to the objects of epoch e.
// Column arrays exist only when the simulation runs on the device.
func bindFrame(fc *graph.FrameContext, m *BufferManager, e *Epoch, target *wgpu.TextureView) {
	fc.Bind(ResParams, graph.Binding{Buffer: m.ParamsBuf})
	fc.Bind(ResScreen, graph.Binding{Buffer: m.ScreenBuf})
	fc.Bind(ResGlyphUVs, graph.Binding{Buffer: m.UVBuf})
	fc.Bind(ResAtlas, graph.Binding{View: m.AtlasView})
	if e.Columns[core.FieldHead] != nil {
		fc.Bind(ResColumns, graph.Binding{Buffers: e.Columns[:]})
	}
	fc.Bind(ResInstances, graph.Binding{Buffer: e.Instances})
	if e.ColorView != nil {
		fc.Bind(ResColor, graph.Binding{View: e.ColorView})
	}
	fc.Bind(ResSwapchain, graph.Binding{View: target})
}

// Frames is the number of submitted frames.
func (r *Renderer) Frames() uint64 {
	return r.frame
}

// Release waits for the device and releases every scope.
func (r *Renderer) Release() {
	if r.Epoch != nil {
		r.Epoch.Retire(r.idle)
		r.Epoch = nil
	}
	r.Lifetimes.Teardown(r.idle)
}
