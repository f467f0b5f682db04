package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
)

// PresentPass composites the offscreen color target onto the swapchain with
// a single full-screen triangle.
type PresentPass struct {
	Pipeline  *wgpu.RenderPipeline
	Layout    *wgpu.BindGroupLayout
	BindGroup *wgpu.BindGroup
}

func NewPresentPass(device *wgpu.Device, scope *Scope, src string, format wgpu.TextureFormat) (*PresentPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "FullscreenShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fullscreen module: %w", err)
	}
	scope.TrackShaderModule("FullscreenShader", module)

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "PresentPipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create present pipeline: %w", err)
	}
	p := &PresentPass{Pipeline: scope.TrackRenderPipeline("PresentPipeline", pipeline)}
	p.Layout = scope.TrackBindGroupLayout("PresentBGL", pipeline.GetBindGroupLayout(0))
	return p, nil
}

func (p *PresentPass) Bind(device *wgpu.Device, scope *Scope, m *BufferManager, e *Epoch) error {
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "PresentBG",
		Layout: p.Layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: e.ColorView},
			{Binding: 1, Sampler: m.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create present bind group: %w", err)
	}
	p.BindGroup = scope.TrackBindGroup("PresentBG", bg)
	return nil
}

func (p *PresentPass) Execute(fc *graph.FrameContext) error {
	if p.BindGroup == nil {
		return ErrNotBound
	}
	target, ok := fc.Resolve(ResSwapchain)
	if !ok || target.View == nil {
		return fmt.Errorf("%s not bound", ResSwapchain)
	}
	pass := fc.Encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Present",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clearColor,
		}},
	})
	defer pass.Release()
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}
