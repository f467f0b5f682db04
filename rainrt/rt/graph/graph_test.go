package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(log *[]string, name string) func(*FrameContext) error {
	return func(*FrameContext) error {
		*log = append(*log, name)
		return nil
	}
}

func TestCompile_SimDrawPresent(t *testing.T) {
	var ran []string
	g := New()
	// Added out of order on purpose.
	g.AddPass(Pass{Name: "Present", Kind: Present, Reads: []string{"C"}, Execute: recorder(&ran, "Present")})
	g.AddPass(Pass{Name: "Draw", Kind: Draw, Reads: []string{"I"}, Writes: []string{"C"}, Execute: recorder(&ran, "Draw")})
	g.AddPass(Pass{Name: "Sim", Kind: Compute, Writes: []string{"I"}, Execute: recorder(&ran, "Sim")})

	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"Sim", "Draw", "Present"}, g.Order())

	require.NoError(t, g.Execute(NewFrameContext(nil, 0.016, 1)))
	assert.Equal(t, []string{"Sim", "Draw", "Present"}, ran)
}

func TestCompile_UnwrittenReadIsAvailable(t *testing.T) {
	g := New()
	g.AddPass(Pass{Name: "Draw", Reads: []string{"Atlas"}, Writes: []string{"C"}, Execute: recorder(new([]string), "Draw")})
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"Draw"}, g.Order())
}

func TestCompile_StrictRejectsUndeclaredRead(t *testing.T) {
	g := New()
	g.Strict = true
	g.AddPass(Pass{Name: "Draw", Reads: []string{"Atlas"}, Execute: recorder(new([]string), "Draw")})
	assert.ErrorIs(t, g.Compile(), ErrUndeclaredResource)

	g.Import("Atlas")
	assert.NoError(t, g.Compile())
}

func TestCompile_WriteWriteIsTotal(t *testing.T) {
	g := New()
	g.AddPass(Pass{Name: "A", Writes: []string{"X"}, Execute: recorder(new([]string), "A")})
	g.AddPass(Pass{Name: "B", Writes: []string{"X"}, Execute: recorder(new([]string), "B")})
	require.NoError(t, g.Compile())
	assert.ElementsMatch(t, []string{"A", "B"}, g.Order())
	assert.Len(t, g.Order(), 2)
}

func TestCompile_ReadWriteSameResource(t *testing.T) {
	g := New()
	g.AddPass(Pass{Name: "Sim", Reads: []string{"Columns"}, Writes: []string{"Columns", "I"}, Execute: recorder(new([]string), "Sim")})
	g.AddPass(Pass{Name: "Draw", Reads: []string{"I"}, Writes: []string{"C"}, Execute: recorder(new([]string), "Draw")})
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"Sim", "Draw"}, g.Order())
}

func TestCompile_Cycle(t *testing.T) {
	g := New()
	g.AddPass(Pass{Name: "A", Reads: []string{"X"}, Writes: []string{"Y"}, Execute: recorder(new([]string), "A")})
	g.AddPass(Pass{Name: "B", Reads: []string{"Y"}, Writes: []string{"X"}, Execute: recorder(new([]string), "B")})

	err := g.Compile()
	require.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "A")
	assert.Contains(t, err.Error(), "B")
	assert.False(t, g.Compiled())
	assert.Nil(t, g.Order())
	assert.ErrorIs(t, g.Execute(NewFrameContext(nil, 0, 0)), ErrNotCompiled)
}

func TestCompile_StableTieBreak(t *testing.T) {
	g := New()
	for _, n := range []string{"c", "a", "b"} {
		g.AddPass(Pass{Name: n, Writes: []string{n}, Execute: recorder(new([]string), n)})
	}
	require.NoError(t, g.Compile())
	assert.Equal(t, []string{"c", "a", "b"}, g.Order())
}

func TestAddPass_ProgrammingErrorsPanic(t *testing.T) {
	noop := func(*FrameContext) error { return nil }

	g := New()
	g.AddPass(Pass{Name: "Sim", Execute: noop})
	assert.Panics(t, func() { g.AddPass(Pass{Name: "Sim", Execute: noop}) })
	assert.Panics(t, func() { g.AddPass(Pass{Execute: noop}) })
	assert.Panics(t, func() { g.AddPass(Pass{Name: "NoFn"}) })
	assert.Panics(t, func() { g.AddPass(Pass{Name: "Dup", Writes: []string{"X", "X"}, Execute: noop}) })
}

func TestAddPass_InvalidatesCompile(t *testing.T) {
	g := New()
	g.AddPass(Pass{Name: "A", Execute: func(*FrameContext) error { return nil }})
	require.NoError(t, g.Compile())
	g.AddPass(Pass{Name: "B", Execute: func(*FrameContext) error { return nil }})
	assert.False(t, g.Compiled())
	assert.ErrorIs(t, g.Execute(NewFrameContext(nil, 0, 0)), ErrNotCompiled)
}

func TestExecute_StopsOnError(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	g := New()
	g.AddPass(Pass{Name: "Sim", Kind: Compute, Writes: []string{"I"}, Execute: func(*FrameContext) error { return boom }})
	g.AddPass(Pass{Name: "Draw", Reads: []string{"I"}, Execute: recorder(&ran, "Draw")})
	require.NoError(t, g.Compile())

	err := g.Execute(NewFrameContext(nil, 0, 0))
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pass Sim (compute)")
	assert.Empty(t, ran)
}

func TestFrameContext_Resolve(t *testing.T) {
	fc := NewFrameContext(nil, 0.5, 3)
	_, ok := fc.Resolve("I")
	assert.False(t, ok)
	fc.Bind("I", Binding{})
	_, ok = fc.Resolve("I")
	assert.True(t, ok)
	assert.Equal(t, uint64(3), fc.Index)
}

func TestPassKindString(t *testing.T) {
	assert.Equal(t, "compute", Compute.String())
	assert.Equal(t, "present", Present.String())
	assert.Equal(t, "PassKind(9)", PassKind(9).String())
}
