package workflow

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepName string

func TestNormalizeDeps(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    Deps
		wantErr bool
	}{
		{name: "nil", input: nil, want: Deps{}},
		{name: "string slice", input: []string{"a", "b"}, want: Deps{"a": nil, "b": nil}},
		{name: "any slice", input: []any{"a"}, want: Deps{"a": nil}},
		{name: "deps", input: Deps{"a": 1}, want: Deps{"a": 1}},
		{name: "map any", input: map[string]any{"a": "out"}, want: Deps{"a": "out"}},
		{name: "map string", input: map[string]string{"a": "out"}, want: Deps{"a": "out"}},
		{name: "map any any", input: map[any]any{"a": nil}, want: Deps{"a": nil}},
		{name: "duplicate names collapse", input: []string{"a", "a"}, want: Deps{"a": nil}},
		{name: "map string int", input: map[string]int{"split": 0}, want: Deps{"split": 0}},
		{name: "map string bool", input: map[string]bool{"a": true}, want: Deps{"a": true}},
		{name: "map string slice", input: map[string][]string{"a": {"x"}}, want: Deps{"a": []string{"x"}}},
		{name: "map named key", input: map[stepName]any{"a": nil}, want: Deps{"a": nil}},
		{name: "named string slice", input: []stepName{"a", "b"}, want: Deps{"a": nil, "b": nil}},
		{name: "string array", input: [2]string{"a", "b"}, want: Deps{"a": nil, "b": nil}},
		{name: "empty typed map", input: map[string]int(nil), want: Deps{}},
		{name: "string", input: "a", wantErr: true},
		{name: "struct", input: struct{}{}, wantErr: true},
		{name: "bad element", input: []any{1}, wantErr: true},
		{name: "bad key", input: map[any]any{true: nil}, wantErr: true},
		{name: "int keys", input: map[int]string{1: "a"}, wantErr: true},
		{name: "int slice", input: []int{1}, wantErr: true},
		{name: "bytes", input: []byte("a"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDeps(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDependencyShape))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeDeps_CopiesInput(t *testing.T) {
	in := Deps{"a": nil}
	out, err := NormalizeDeps(in)
	require.NoError(t, err)

	in["b"] = nil
	assert.Len(t, out, 1)
}

func buildDiamond(t *testing.T) *Graph {
	t.Helper()
	g, err := NewDAGBuilder(WithName("diamond"), WithParallelism(2)).
		Step("source", "src", nil).
		Step("left", "l", After("source")).
		Step("right", "r", After("source")).
		Step("join", "j", After("right", "left")).
		Step("report", "rep", After("source")).
		Build()
	require.NoError(t, err)
	return g
}

func TestGraph_Queries(t *testing.T) {
	g := buildDiamond(t)

	assert.Equal(t, []string{"source", "left", "right", "join", "report"}, g.Names())
	assert.Equal(t, []string{"left", "right"}, g.Dependencies("join"))
	assert.Equal(t, []string{"left", "right", "report"}, g.Dependents("source"))
	assert.Equal(t, []string{"source"}, g.Roots())
	assert.Equal(t, []string{"join", "report"}, g.Leaves())
	assert.Equal(t, [][]string{
		{"source"},
		{"left", "right", "report"},
		{"join"},
	}, g.Layers())
	assert.Nil(t, g.Dependencies("missing"))
	assert.Nil(t, g.Dependents("missing"))
	assert.Equal(t, 2, g.Parallelism())
}

func TestGraph_StepReturnsCopy(t *testing.T) {
	g := buildDiamond(t)

	step, ok := g.Step("join")
	require.True(t, ok)
	step.Deps["source"] = nil

	again, _ := g.Step("join")
	assert.Len(t, again.Deps, 2, "mutating a returned step must not reach the graph")

	steps := g.Steps()
	steps[0].Deps["x"] = nil
	first, _ := g.Step("source")
	assert.Empty(t, first.Deps)
}

func TestGraph_ConcurrentReaders(t *testing.T) {
	g := buildDiamond(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = g.Layers()
				_ = g.Edges()
				_, _ = g.Step("join")
			}
		}()
	}
	wg.Wait()
}
