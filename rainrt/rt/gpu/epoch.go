package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/glyphrain"
	"github.com/gekko3d/glyphrain/rainrt/rt/core"
	"github.com/gekko3d/glyphrain/rainrt/rt/graph"
)

var ErrEpochRetired = errors.New("epoch retired")

// BindFunc creates an epoch's bind groups into scope.
type BindFunc func(scope *Scope) error

// Epoch is one generation of viewport-sized state: the grid layout, the
// surface-scoped buffers, the cached bind groups over them and the compiled
// frame graph. The frame loop always executes the current epoch; a resize
// retires it and builds the next one.
type Epoch struct {
	Generation uint64
	Layout     core.GridLayout
	Graph      *graph.Graph

	Columns   [core.NumColumnFields]*wgpu.Buffer
	Instances *wgpu.Buffer
	ColorTex  *wgpu.Texture
	ColorView *wgpu.TextureView

	lt      *Lifetimes
	binds   *Scope
	bind    BindFunc
	retired bool
	log     glyphrain.Logger
}

func NewEpoch(generation uint64, layout core.GridLayout, lt *Lifetimes, log glyphrain.Logger) *Epoch {
	log = glyphrain.OrNop(log)
	return &Epoch{
		Generation: generation,
		Layout:     layout,
		lt:         lt,
		binds:      NewScope(fmt.Sprintf("bindings#%d", generation), log),
		log:        log,
	}
}

// SetBinder installs the bind group factory used by Rebuild.
func (e *Epoch) SetBinder(fn BindFunc) {
	e.bind = fn
}

// Rebuild recreates the cached bind groups. It is the only place bind groups
// are created; Execute reuses them. Existing groups are released only after
// the queue is idle.
func (e *Epoch) Rebuild(idle Idler) error {
	if e.retired {
		return ErrEpochRetired
	}
	if e.bind == nil {
		return errors.New("epoch has no binder")
	}
	if e.binds.Len() > 0 {
		idle.WaitIdle()
		e.binds.DestroyAll()
	}
	if err := e.bind(e.binds); err != nil {
		e.binds.DestroyAll()
		return fmt.Errorf("epoch %d: %w", e.Generation, err)
	}
	e.log.Debugf("epoch %d: %d bind groups", e.Generation, e.binds.Len())
	return nil
}

// BindGroups is the number of cached bind groups.
func (e *Epoch) BindGroups() int {
	return e.binds.Len()
}

func (e *Epoch) Execute(fc *graph.FrameContext) error {
	if e.retired {
		return ErrEpochRetired
	}
	if e.Graph == nil {
		return graph.ErrNotCompiled
	}
	return e.Graph.Execute(fc)
}

// Retire waits for the GPU to finish, then releases the cached bind groups
// and the whole surface scope. Retiring twice is a no-op.
func (e *Epoch) Retire(idle Idler) int {
	if e.retired {
		return 0
	}
	idle.WaitIdle()
	n := e.binds.DestroyAll()
	n += e.lt.RetireSurface(idle)
	e.retired = true
	e.Graph = nil
	e.Columns = [core.NumColumnFields]*wgpu.Buffer{}
	e.Instances, e.ColorTex, e.ColorView = nil, nil, nil
	e.log.Debugf("epoch %d retired: %d objects released", e.Generation, n)
	return n
}

func (e *Epoch) Retired() bool {
	return e.retired
}
