package app

import (
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/glyphrain"
	"github.com/gekko3d/glyphrain/rainrt/rt/core"
	"github.com/gekko3d/glyphrain/rainrt/rt/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Settings  glyphrain.Config
	Atlas     *core.Atlas
	Lifetimes *gpu.Lifetimes
	Renderer  *gpu.Renderer
	Profiler  *Profiler
	Log       glyphrain.Logger

	clock   frameClock
	skipped int
}

func NewApp(window *glfw.Window, settings glyphrain.Config, log glyphrain.Logger) *App {
	return &App{
		Window:   window,
		Settings: settings,
		Profiler: NewProfiler(),
		Log:      glyphrain.OrNop(log),
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	if width > 0 && height > 0 {
		a.Surface.Configure(adapter, a.Device, a.Config)
	}

	a.Atlas, err = a.buildAtlas()
	if err != nil {
		return err
	}
	if len(a.Atlas.Missing) > 0 {
		a.Log.Warnf("font has no glyph for %q; those cells render empty", string(a.Atlas.Missing))
	}

	a.Lifetimes = gpu.NewLifetimes(a.Log)
	opts := gpu.RendererOptions{
		SurfaceFormat:  a.Config.Format,
		Atlas:          a.Atlas,
		Tuning:         a.Settings.Simulation,
		MinTrail:       a.Settings.MinTrail,
		Seed:           a.Settings.Seed,
		Present:        a.Settings.Present,
		HostSimulation: a.Settings.HostSimulation,
	}
	if a.Settings.Debug {
		opts.Timer = a.Profiler
	}
	a.Renderer, err = gpu.NewRenderer(a.Device, a.Lifetimes, opts, a.Log)
	if err != nil {
		return err
	}
	return a.Renderer.Resize(width, height)
}

func (a *App) buildAtlas() (*core.Atlas, error) {
	var fontData []byte
	if a.Settings.FontPath != "" {
		data, err := os.ReadFile(a.Settings.FontPath)
		if err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
		fontData = data
	}
	limits := a.Device.GetLimits()
	return core.BuildAtlas(core.AtlasOptions{
		Alphabet:      a.Settings.Alphabet,
		FontData:      fontData,
		FontSize:      a.Settings.FontSize,
		Padding:       a.Settings.Padding,
		MinPadding:    a.Settings.MinPadding,
		MaxTextureDim: int(limits.Limits.MaxTextureDimension2D),
	})
}

func GetSurfaceDescriptor(w *glfw.Window) *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(w)
}

// Resize reconfigures the surface and rebuilds every viewport-sized resource.
// A zero-sized framebuffer (minimized window) pauses rendering.
func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
	}
	if err := a.Renderer.Resize(w, h); err != nil {
		a.Log.Errorf("%v", err)
	}
}

func (a *App) Render() {
	dt, sampled := a.clock.Tick(glfw.GetTime())
	if a.Renderer.Epoch == nil {
		return
	}

	a.Profiler.BeginScope("frame")
	defer a.Lifetimes.EndFrame()

	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.skipped++
		a.Log.Warnf("skipping frame: GetCurrentTexture failed: %v", err)
		return
	}
	a.Lifetimes.Frame.Track(gpu.SurfaceTextureResource(nextTexture))

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.skipped++
		a.Log.Warnf("skipping frame: CreateView failed: %v", err)
		return
	}
	a.Lifetimes.Frame.TrackTextureView("SurfaceView", view)

	if err := a.Renderer.Render(view, dt); err != nil {
		a.skipped++
		a.Log.Errorf("frame %d: %v", a.Renderer.Frames(), err)
		return
	}
	a.Surface.Present()

	a.Profiler.EndScope("frame")
	a.Profiler.EndFrame()
	if sampled && a.Settings.Debug {
		a.report()
	}
}

func (a *App) report() {
	e := a.Renderer.Epoch
	a.Profiler.SetCount("epoch", int(e.Generation))
	a.Profiler.SetCount("columns", e.Layout.Cols)
	a.Profiler.SetCount("instances", e.Layout.InstanceCount)
	a.Profiler.SetCount("bind_groups", e.BindGroups())
	a.Profiler.SetCount("skipped", a.skipped)
	a.Log.Debugf("%.1f FPS\n%s", a.clock.FPS(), a.Profiler.GetStatsString())
	a.Profiler.Reset()
}

func (a *App) Release() {
	if a.Renderer != nil {
		a.Renderer.Release()
	} else if a.Lifetimes != nil {
		a.Lifetimes.Teardown(gpu.DeviceIdler{Device: a.Device})
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}
