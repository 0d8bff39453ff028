package workflow

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPipeline(t *testing.T) *Graph {
	t.Helper()
	g, err := NewDAGBuilder(WithName("etl")).
		Step("alpha", nil, nil).
		Step("beta", nil, After("alpha")).
		Step("gamma", nil, Deps{"alpha": nil, "beta": "rows"}).
		Build()
	require.NoError(t, err)
	return g
}

func TestDOTRenderer(t *testing.T) {
	g := buildPipeline(t)

	var buf bytes.Buffer
	err := g.Render(&buf, NewDOTRenderer(DOTWithGraphName("pipeline"), DOTWithRankDir("TB")))
	require.NoError(t, err)

	want := `digraph "pipeline" {
    rankdir=TB;
    "alpha";
    "beta";
    "gamma";
    "alpha" -> "beta";
    "alpha" -> "gamma";
    "beta" -> "gamma" [label="rows"];
}
`
	assert.Equal(t, want, buf.String())
}

func TestDOTRenderer_DefaultsAndQuoting(t *testing.T) {
	g, err := NewDAGBuilder().
		Step(`say "hi"`, nil, nil).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, nil))

	want := `digraph "pipedag" {
    rankdir=LR;
    "say \"hi\"";
}
`
	assert.Equal(t, want, buf.String())
}

func TestMermaidRenderer(t *testing.T) {
	g := buildPipeline(t)

	var buf bytes.Buffer
	require.NoError(t, g.Render(&buf, &MermaidRenderer{}))

	want := `flowchart LR
    s0["alpha"]
    s1["beta"]
    s2["gamma"]
    s0 --> s1
    s0 --> s2
    s1 -->|rows| s2
`
	assert.Equal(t, want, buf.String())
}

func TestRender_NilWriter(t *testing.T) {
	g := buildPipeline(t)
	assert.True(t, errors.Is(g.Render(nil, &MermaidRenderer{}), ErrNilWriter))
	assert.True(t, errors.Is(NewDOTRenderer().Render(nil, g), ErrNilWriter))
}

func TestRendererFor(t *testing.T) {
	r, err := RendererFor("dot", "TB")
	require.NoError(t, err)
	assert.IsType(t, &DOTRenderer{}, r)

	r, err = RendererFor("Mermaid", "")
	require.NoError(t, err)
	assert.IsType(t, &MermaidRenderer{}, r)

	_, err = RendererFor("svg", "")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}
