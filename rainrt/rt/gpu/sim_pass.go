package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain/rainrt/rt/core"
	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
)

// SimWorkgroupSize matches @workgroup_size in rain_sim.wgsl.
const SimWorkgroupSize = 64

var ErrNotBound = errors.New("pass has no bind group")

// Workgroups is the dispatch count covering cols invocations.
func Workgroups(cols int) uint32 {
	if cols <= 0 {
		return 0
	}
	return uint32((cols + SimWorkgroupSize - 1) / SimWorkgroupSize)
}

// SimPass advances every column and writes its instance slots on the device.
type SimPass struct {
	Pipeline  *wgpu.ComputePipeline
	Layout    *wgpu.BindGroupLayout
	BindGroup *wgpu.BindGroup

	cols int
}

func NewSimPass(device *wgpu.Device, scope *Scope, src string) (*SimPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "RainSimShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rain sim module: %w", err)
	}
	scope.TrackShaderModule("RainSimShader", module)

	pipeline, err := device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "RainSimPipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rain sim pipeline: %w", err)
	}
	p := &SimPass{Pipeline: scope.TrackComputePipeline("RainSimPipeline", pipeline)}
	p.Layout = scope.TrackBindGroupLayout("RainSimBGL", pipeline.GetBindGroupLayout(0))
	return p, nil
}

// Bind creates the bind group for one epoch's buffers into scope.
func (p *SimPass) Bind(device *wgpu.Device, scope *Scope, m *BufferManager, e *Epoch) error {
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: m.ParamsBuf, Size: m.ParamsBuf.GetSize()},
	}
	for f := core.ColumnField(0); f < core.NumColumnFields; f++ {
		buf := e.Columns[f]
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(1 + f), Buffer: buf, Size: buf.GetSize()})
	}
	entries = append(entries,
		wgpu.BindGroupEntry{Binding: 6, Buffer: m.UVBuf, Size: m.UVBuf.GetSize()},
		wgpu.BindGroupEntry{Binding: 7, Buffer: e.Instances, Size: e.Instances.GetSize()},
	)

	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "RainSimBG",
		Layout:  p.Layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("failed to create rain sim bind group: %w", err)
	}
	p.BindGroup = scope.TrackBindGroup("RainSimBG", bg)
	p.cols = e.Layout.Cols
	return nil
}

func (p *SimPass) Execute(fc *graph.FrameContext) error {
	if p.BindGroup == nil {
		return ErrNotBound
	}
	pass := fc.Encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "RainSim"})
	defer pass.Release()
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.DispatchWorkgroups(Workgroups(p.cols), 1, 1)
	return pass.End()
}

// HostSimPass steps the columns on the CPU and uploads the resulting instances.
type HostSimPass struct {
	Sim       *core.HostSimulation
	Params    func(dt float32) core.SimParams
	Buffers   *BufferManager
	Instances *wgpu.Buffer
}

func (p *HostSimPass) Execute(fc *graph.FrameContext) error {
	p.Sim.Step(p.Params(fc.Dt))
	p.Buffers.UploadInstances(p.Instances, p.Sim.Instances)
	return nil
}
