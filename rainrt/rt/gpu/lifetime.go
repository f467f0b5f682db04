package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain"
	"github.com/google/uuid"
)

// Kind is the closed set of GPU object types a Scope can own. Each kind has
// a fixed release contract, see newTracked.
type Kind int

const (
	KindBuffer Kind = iota
	KindTexture
	KindTextureView
	KindSampler
	KindBindGroup
	KindBindGroupLayout
	KindPipelineLayout
	KindComputePipeline
	KindRenderPipeline
	KindShaderModule
	KindSurfaceTexture
	KindCommandEncoder
	KindCommandBuffer
)

var kindNames = [...]string{
	"buffer", "texture", "texture-view", "sampler", "bind-group", "bind-group-layout",
	"pipeline-layout", "compute-pipeline", "render-pipeline", "shader-module",
	"surface-texture", "command-encoder", "command-buffer",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Resource is one tracked GPU object.
type Resource struct {
	ID    uuid.UUID
	Kind  Kind
	Label string

	release func()
}

func newTracked(kind Kind, label string, release func()) Resource {
	return Resource{ID: uuid.New(), Kind: kind, Label: label, release: release}
}

// Buffers and textures own device memory: Destroy frees it immediately,
// Release drops the handle. Everything else only has a handle to drop.
// Surface textures belong to the swapchain and are never destroyed.

func BufferResource(label string, b *wgpu.Buffer) Resource {
	return newTracked(KindBuffer, label, func() { b.Destroy(); b.Release() })
}

func TextureResource(label string, t *wgpu.Texture) Resource {
	return newTracked(KindTexture, label, func() { t.Destroy(); t.Release() })
}

func TextureViewResource(label string, v *wgpu.TextureView) Resource {
	return newTracked(KindTextureView, label, v.Release)
}

func SamplerResource(label string, s *wgpu.Sampler) Resource {
	return newTracked(KindSampler, label, s.Release)
}

func BindGroupResource(label string, bg *wgpu.BindGroup) Resource {
	return newTracked(KindBindGroup, label, bg.Release)
}

func BindGroupLayoutResource(label string, l *wgpu.BindGroupLayout) Resource {
	return newTracked(KindBindGroupLayout, label, l.Release)
}

func PipelineLayoutResource(label string, l *wgpu.PipelineLayout) Resource {
	return newTracked(KindPipelineLayout, label, l.Release)
}

func ComputePipelineResource(label string, p *wgpu.ComputePipeline) Resource {
	return newTracked(KindComputePipeline, label, p.Release)
}

func RenderPipelineResource(label string, p *wgpu.RenderPipeline) Resource {
	return newTracked(KindRenderPipeline, label, p.Release)
}

func ShaderModuleResource(label string, m *wgpu.ShaderModule) Resource {
	return newTracked(KindShaderModule, label, m.Release)
}

func SurfaceTextureResource(t *wgpu.Texture) Resource {
	return newTracked(KindSurfaceTexture, "surface", t.Release)
}

func CommandEncoderResource(label string, e *wgpu.CommandEncoder) Resource {
	return newTracked(KindCommandEncoder, label, e.Release)
}

func CommandBufferResource(label string, c *wgpu.CommandBuffer) Resource {
	return newTracked(KindCommandBuffer, label, c.Release)
}

// Scope owns GPU objects that share a lifetime. DestroyAll releases them in
// reverse creation order and leaves the scope empty and reusable.
type Scope struct {
	Name string

	items []Resource
	log   glyphrain.Logger
}

func NewScope(name string, log glyphrain.Logger) *Scope {
	return &Scope{Name: name, log: glyphrain.OrNop(log)}
}

func (s *Scope) Track(r Resource) Resource {
	if r.release == nil {
		panic(fmt.Sprintf("scope %s: resource %q (%s) has no release contract", s.Name, r.Label, r.Kind))
	}
	s.items = append(s.items, r)
	return r
}

func (s *Scope) Len() int { return len(s.items) }

// Count returns how many tracked objects are of kind k.
func (s *Scope) Count(k Kind) int {
	n := 0
	for _, r := range s.items {
		if r.Kind == k {
			n++
		}
	}
	return n
}

func (s *Scope) DestroyAll() int {
	n := len(s.items)
	for i := n - 1; i >= 0; i-- {
		r := s.items[i]
		s.log.Debugf("scope %s: release %s %q", s.Name, r.Kind, r.Label)
		r.release()
	}
	clear(s.items)
	s.items = s.items[:0]
	return n
}

// Typed helpers return the tracked object so creation and tracking read as one step.

func (s *Scope) TrackBuffer(label string, b *wgpu.Buffer) *wgpu.Buffer {
	s.Track(BufferResource(label, b))
	return b
}

func (s *Scope) TrackTexture(label string, t *wgpu.Texture) *wgpu.Texture {
	s.Track(TextureResource(label, t))
	return t
}

func (s *Scope) TrackTextureView(label string, v *wgpu.TextureView) *wgpu.TextureView {
	s.Track(TextureViewResource(label, v))
	return v
}

func (s *Scope) TrackSampler(label string, smp *wgpu.Sampler) *wgpu.Sampler {
	s.Track(SamplerResource(label, smp))
	return smp
}

func (s *Scope) TrackBindGroup(label string, bg *wgpu.BindGroup) *wgpu.BindGroup {
	s.Track(BindGroupResource(label, bg))
	return bg
}

func (s *Scope) TrackBindGroupLayout(label string, l *wgpu.BindGroupLayout) *wgpu.BindGroupLayout {
	s.Track(BindGroupLayoutResource(label, l))
	return l
}

func (s *Scope) TrackComputePipeline(label string, p *wgpu.ComputePipeline) *wgpu.ComputePipeline {
	s.Track(ComputePipelineResource(label, p))
	return p
}

func (s *Scope) TrackRenderPipeline(label string, p *wgpu.RenderPipeline) *wgpu.RenderPipeline {
	s.Track(RenderPipelineResource(label, p))
	return p
}

func (s *Scope) TrackShaderModule(label string, m *wgpu.ShaderModule) *wgpu.ShaderModule {
	s.Track(ShaderModuleResource(label, m))
	return m
}

// Idler blocks until all submitted GPU work has completed.
type Idler interface {
	WaitIdle()
}

type DeviceIdler struct {
	Device *wgpu.Device
}

func (d DeviceIdler) WaitIdle() {
	d.Device.Poll(true, nil)
}

// Lifetimes is the three nested ownership scopes. It is constructed
// explicitly and handed to every component that allocates GPU objects.
type Lifetimes struct {
	Device  *Scope
	Surface *Scope
	Frame   *Scope

	log glyphrain.Logger
}

func NewLifetimes(log glyphrain.Logger) *Lifetimes {
	log = glyphrain.OrNop(log)
	return &Lifetimes{
		Device:  NewScope("device", log),
		Surface: NewScope("surface", log),
		Frame:   NewScope("frame", log),
		log:     log,
	}
}

// RetireSurface waits for the queue to drain, then destroys everything sized
// by the viewport. No surface-scoped object is released while GPU work may
// still reference it.
func (l *Lifetimes) RetireSurface(idle Idler) int {
	idle.WaitIdle()
	n := l.Surface.DestroyAll()
	l.log.Debugf("retired surface scope: %d objects", n)
	return n
}

// EndFrame releases per-frame transients after submission.
func (l *Lifetimes) EndFrame() int {
	return l.Frame.DestroyAll()
}

func (l *Lifetimes) Teardown(idle Idler) {
	idle.WaitIdle()
	l.Frame.DestroyAll()
	l.Surface.DestroyAll()
	n := l.Device.DestroyAll()
	l.log.Debugf("teardown: released %d device objects", n)
}
