// Package graph orders GPU passes by their declared resource reads and writes
// and runs them against one command encoder per frame.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	ErrCycle              = errors.New("render graph has a cycle")
	ErrNotCompiled        = errors.New("render graph not compiled")
	ErrUndeclaredResource = errors.New("resource read but never written or imported")
)

type PassKind int

const (
	Compute PassKind = iota
	Draw
	Post
	Present
)

func (k PassKind) String() string {
	switch k {
	case Compute:
		return "compute"
	case Draw:
		return "draw"
	case Post:
		return "post"
	case Present:
		return "present"
	}
	return fmt.Sprintf("PassKind(%d)", int(k))
}

// Binding is the live GPU object a resource name resolves to for one frame.
// Buffers carries resources backed by several buffers, such as the column
// arrays.
type Binding struct {
	Buffer  *wgpu.Buffer
	Buffers []*wgpu.Buffer
	View    *wgpu.TextureView
}

// FrameContext carries the per-frame encoder and resource bindings to every pass.
type FrameContext struct {
	Encoder *wgpu.CommandEncoder
	Dt      float32
	Index   uint64

	resources map[string]Binding
}

func NewFrameContext(encoder *wgpu.CommandEncoder, dt float32, index uint64) *FrameContext {
	return &FrameContext{
		Encoder:   encoder,
		Dt:        dt,
		Index:     index,
		resources: make(map[string]Binding),
	}
}

func (f *FrameContext) Bind(name string, b Binding) {
	f.resources[name] = b
}

func (f *FrameContext) Resolve(name string) (Binding, bool) {
	b, ok := f.resources[name]
	return b, ok
}

type Pass struct {
	Name    string
	Kind    PassKind
	Reads   []string
	Writes  []string
	Execute func(*FrameContext) error
}

type Graph struct {
	// Strict rejects reads of resources that no pass writes and that were
	// not imported. Otherwise such reads are treated as already available.
	Strict bool

	passes   []Pass
	index    map[string]int
	imported map[string]bool
	order    []int
	compiled bool
}

func New() *Graph {
	return &Graph{
		index:    make(map[string]int),
		imported: make(map[string]bool),
	}
}

// AddPass registers p. Malformed declarations are programming errors and panic.
func (g *Graph) AddPass(p Pass) *Graph {
	if p.Name == "" {
		panic("graph: pass with empty name")
	}
	if _, dup := g.index[p.Name]; dup {
		panic(fmt.Sprintf("graph: duplicate pass %q", p.Name))
	}
	if p.Execute == nil {
		panic(fmt.Sprintf("graph: pass %q has no Execute func", p.Name))
	}
	checkUnique(p.Name, "reads", p.Reads)
	checkUnique(p.Name, "writes", p.Writes)

	g.index[p.Name] = len(g.passes)
	g.passes = append(g.passes, p)
	g.compiled = false
	return g
}

func checkUnique(pass, what string, names []string) {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			panic(fmt.Sprintf("graph: pass %q %s an empty resource name", pass, what))
		}
		if seen[n] {
			panic(fmt.Sprintf("graph: pass %q %s %q twice", pass, what, n))
		}
		seen[n] = true
	}
}

// Import declares resources produced outside the graph (uploads, the atlas).
func (g *Graph) Import(names ...string) *Graph {
	for _, n := range names {
		g.imported[n] = true
	}
	g.compiled = false
	return g
}

// Compile computes the execution order with Kahn's algorithm over hazard
// edges. Ties go to the pass added first, so the order is stable.
func (g *Graph) Compile() error {
	n := len(g.passes)
	writers := make(map[string][]int)
	for i, p := range g.passes {
		for _, w := range p.Writes {
			writers[w] = append(writers[w], i)
		}
	}

	edges := make([][]int, n)
	indegree := make([]int, n)
	addEdge := func(from, to int) {
		if from == to || slices.Contains(edges[from], to) {
			return
		}
		edges[from] = append(edges[from], to)
		indegree[to]++
	}

	// Writers of one resource run in the order they were added.
	for _, ws := range writers {
		for k := 1; k < len(ws); k++ {
			addEdge(ws[k-1], ws[k])
		}
	}
	for i, p := range g.passes {
		for _, r := range p.Reads {
			ws, ok := writers[r]
			if !ok {
				if g.Strict && !g.imported[r] {
					return fmt.Errorf("%w: %q read by pass %q", ErrUndeclaredResource, r, p.Name)
				}
				continue
			}
			if slices.Contains(p.Writes, r) {
				continue
			}
			for _, w := range ws {
				addEdge(w, i)
			}
		}
	}

	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, p := range g.passes {
				if !done[i] {
					stuck = append(stuck, p.Name)
				}
			}
			g.compiled = false
			return fmt.Errorf("%w: %s", ErrCycle, strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, next)
		for _, to := range edges[next] {
			indegree[to]--
		}
	}

	g.order = order
	g.compiled = true
	return nil
}

func (g *Graph) Compiled() bool { return g.compiled }

func (g *Graph) Len() int { return len(g.passes) }

// Order returns pass names in execution order; nil before Compile.
func (g *Graph) Order() []string {
	if !g.compiled {
		return nil
	}
	names := make([]string, len(g.order))
	for i, idx := range g.order {
		names[i] = g.passes[idx].Name
	}
	return names
}

// Execute runs every pass once in compiled order. The first failing pass
// aborts the frame.
func (g *Graph) Execute(fc *FrameContext) error {
	if !g.compiled {
		return ErrNotCompiled
	}
	for _, idx := range g.order {
		p := g.passes[idx]
		if err := p.Execute(fc); err != nil {
			return fmt.Errorf("pass %s (%s): %w", p.Name, p.Kind, err)
		}
	}
	return nil
}

// String describes the compiled graph, one pass per line.
func (g *Graph) String() string {
	var sb strings.Builder
	for i, name := range g.Order() {
		p := g.passes[g.index[name]]
		fmt.Fprintf(&sb, "%d. %-8s %-10s reads=%v writes=%v\n", i, p.Kind, p.Name, p.Reads, p.Writes)
	}
	return sb.String()
}
