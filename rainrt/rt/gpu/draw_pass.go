package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
)

// QuadVertices is the vertex count of one glyph quad (two triangles).
const QuadVertices = 6

var clearColor = wgpu.Color{R: 0, G: 0, B: 0, A: 1}

// DrawPass renders one instanced quad per instance slot. Empty slots have
// zero brightness and are discarded in the fragment stage.
type DrawPass struct {
	Pipeline  *wgpu.RenderPipeline
	Layout    *wgpu.BindGroupLayout
	BindGroup *wgpu.BindGroup
	Target    string

	instances uint32
}

func NewDrawPass(device *wgpu.Device, scope *Scope, src string, format wgpu.TextureFormat) (*DrawPass, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "GlyphShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create glyph module: %w", err)
	}
	scope.TrackShaderModule("GlyphShader", module)

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "GlyphPipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create glyph pipeline: %w", err)
	}
	p := &DrawPass{Pipeline: scope.TrackRenderPipeline("GlyphPipeline", pipeline)}
	p.Layout = scope.TrackBindGroupLayout("GlyphBGL", pipeline.GetBindGroupLayout(0))
	return p, nil
}

func (p *DrawPass) Bind(device *wgpu.Device, scope *Scope, m *BufferManager, e *Epoch) error {
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "GlyphBG",
		Layout: p.Layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: m.ScreenBuf, Size: m.ScreenBuf.GetSize()},
			{Binding: 1, Buffer: e.Instances, Size: e.Instances.GetSize()},
			{Binding: 2, TextureView: m.AtlasView},
			{Binding: 3, Sampler: m.Sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create glyph bind group: %w", err)
	}
	p.BindGroup = scope.TrackBindGroup("GlyphBG", bg)
	p.instances = uint32(e.Layout.InstanceCount)
	return nil
}

func (p *DrawPass) Execute(fc *graph.FrameContext) error {
	if p.BindGroup == nil {
		return ErrNotBound
	}
	target, ok := fc.Resolve(p.Target)
	if !ok || target.View == nil {
		return fmt.Errorf("draw target %q not bound", p.Target)
	}
	pass := fc.Encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "Glyphs",
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
	if p.instances > 0 {
		pass.Draw(QuadVertices, p.instances, 0, 0)
	}
	return pass.End()
}
