package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain"
	"github.com/gekko3d/glyphrain/rainrt/rt/core"
)

// OffscreenFormat is the color target the draw stage renders into when the
// present stage is enabled.
const OffscreenFormat = wgpu.TextureFormatRGBA8Unorm

// BufferManager creates and fills every buffer and texture the passes bind.
// Uniforms and atlas objects live in the device scope; grid-sized objects are
// allocated into whatever scope the caller passes, normally the surface scope.
type BufferManager struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	ParamsBuf *wgpu.Buffer
	ScreenBuf *wgpu.Buffer
	UVBuf     *wgpu.Buffer

	AtlasTex   *wgpu.Texture
	AtlasView  *wgpu.TextureView
	Sampler    *wgpu.Sampler
	GlyphCount int

	lt  *Lifetimes
	log glyphrain.Logger
}

func NewBufferManager(device *wgpu.Device, lt *Lifetimes, log glyphrain.Logger) (*BufferManager, error) {
	m := &BufferManager{
		Device: device,
		Queue:  device.GetQueue(),
		lt:     lt,
		log:    glyphrain.OrNop(log),
	}
	var err error
	m.ParamsBuf, err = m.createBuffer(lt.Device, "SimParams", core.SimParamsSize, wgpu.BufferUsageUniform)
	if err != nil {
		return nil, err
	}
	m.ScreenBuf, err = m.createBuffer(lt.Device, "ScreenSize", core.ScreenSizeSize, wgpu.BufferUsageUniform)
	if err != nil {
		return nil, err
	}
	m.Sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "AtlasSampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	lt.Device.TrackSampler("AtlasSampler", m.Sampler)
	return m, nil
}

func (m *BufferManager) createBuffer(scope *Scope, label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	if size%4 != 0 {
		size += 4 - size%4
	}
	buf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s (%d bytes): %w", label, size, err)
	}
	return scope.TrackBuffer(label, buf), nil
}

// UploadAtlas copies the atlas image and UV table to the device. It runs once
// at startup; the atlas does not depend on the viewport.
func (m *BufferManager) UploadAtlas(a *core.Atlas) error {
	w, h := a.Size()
	tex, err := m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "GlyphAtlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("failed to create atlas texture %dx%d: %w", w, h, err)
	}
	m.AtlasTex = m.lt.Device.TrackTexture("GlyphAtlas", tex)

	m.Queue.WriteTexture(tex.AsImageCopy(), a.Image.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(a.Image.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})

	view, err := tex.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create atlas view: %w", err)
	}
	m.AtlasView = m.lt.Device.TrackTextureView("GlyphAtlasView", view)

	uvs := a.UVBytes()
	m.UVBuf, err = m.createBuffer(m.lt.Device, "GlyphUVs", uint64(len(uvs)), wgpu.BufferUsageStorage)
	if err != nil {
		return err
	}
	m.Queue.WriteBuffer(m.UVBuf, 0, uvs)
	m.GlyphCount = len(a.UVs)

	m.log.Debugf("atlas uploaded: %dx%d, %d glyphs, cell %dx%d", w, h, m.GlyphCount, a.CellWidth, a.CellHeight)
	return nil
}

func (m *BufferManager) UpdateParams(p core.SimParams) {
	m.Queue.WriteBuffer(m.ParamsBuf, 0, p.Bytes())
}

func (m *BufferManager) UpdateScreen(width, height int) {
	s := core.ScreenSize{Width: float32(width), Height: float32(height)}
	m.Queue.WriteBuffer(m.ScreenBuf, 0, s.Bytes())
}

// AllocateColumns creates the five column arrays and uploads their initial state.
func (m *BufferManager) AllocateColumns(scope *Scope, cols []core.ColumnState) ([core.NumColumnFields]*wgpu.Buffer, error) {
	var bufs [core.NumColumnFields]*wgpu.Buffer
	data := core.SplitColumns(cols).Bytes()
	for f := core.ColumnField(0); f < core.NumColumnFields; f++ {
		size := uint64(max(len(cols), 1) * core.ColumnFieldSize)
		buf, err := m.createBuffer(scope, "Column_"+f.String(), size, wgpu.BufferUsageStorage)
		if err != nil {
			return bufs, err
		}
		if len(data[f]) > 0 {
			m.Queue.WriteBuffer(buf, 0, data[f])
		}
		bufs[f] = buf
	}
	return bufs, nil
}

// AllocateInstances creates the instance array. New buffers are zero-filled,
// so every slot starts invisible.
func (m *BufferManager) AllocateInstances(scope *Scope, count int) (*wgpu.Buffer, error) {
	size := uint64(max(count, 1) * core.InstanceRecordSize)
	return m.createBuffer(scope, "Instances", size, wgpu.BufferUsageStorage)
}

// UploadInstances overwrites the instance array from host records.
func (m *BufferManager) UploadInstances(buf *wgpu.Buffer, records []core.InstanceRecord) {
	if len(records) == 0 {
		return
	}
	m.Queue.WriteBuffer(buf, 0, core.InstanceBytes(records))
}

// AllocateColorTarget creates the offscreen texture the draw stage renders into.
func (m *BufferManager) AllocateColorTarget(scope *Scope, width, height int) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "OffscreenColor",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        OffscreenFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create offscreen target %dx%d: %w", width, height, err)
	}
	scope.TrackTexture("OffscreenColor", tex)
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create offscreen view: %w", err)
	}
	scope.TrackTextureView("OffscreenColorView", view)
	return tex, view, nil
}
