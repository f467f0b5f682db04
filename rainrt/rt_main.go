package main

import (
	"flag"
	"runtime"

	"github.com/gekko3d/glyphrain"
	"github.com/gekko3d/glyphrain/rainrt/rt/app"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML config file")
	debug := flag.Bool("debug", false, "Enable debug logging and per-pass timings")
	seed := flag.Uint64("seed", 0, "Deterministic column seed (0 = random)")
	cpuSim := flag.Bool("cpu-sim", false, "Run the column simulation on the CPU")
	noPresent := flag.Bool("no-present", false, "Draw straight into the swapchain")
	width := flag.Int("width", 0, "Window width")
	height := flag.Int("height", 0, "Window height")
	font := flag.String("font", "", "TTF/OTF font file (default: Go Mono)")
	flag.Parse()

	cfg := glyphrain.DefaultConfig()
	if *configPath != "" {
		loaded, err := glyphrain.LoadConfig(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *debug
		case "seed":
			cfg.Seed = *seed
		case "cpu-sim":
			cfg.HostSimulation = *cpuSim
		case "no-present":
			cfg.Present = !*noPresent
		case "width":
			cfg.Width = *width
		case "height":
			cfg.Height = *height
		case "font":
			cfg.FontPath = *font
		}
	})
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	log := glyphrain.NewDefaultLogger("glyphrain", cfg.Debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, cfg, log)
	defer application.Release()
	if err := application.Init(); err != nil {
		panic(err)
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Render()
	}
}
