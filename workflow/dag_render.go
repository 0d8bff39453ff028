package workflow

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNilWriter indicates that a nil writer was provided to a renderer.
	ErrNilWriter = errors.New("workflow: nil writer")
	// ErrUnknownFormat indicates an unsupported render format.
	ErrUnknownFormat = errors.New("workflow: unknown render format")
)

// Renderer turns a frozen graph into a human-readable representation.
type Renderer interface {
	Render(w io.Writer, g *Graph) error
}

// Render writes the graph using r.
func (g *Graph) Render(w io.Writer, r Renderer) error {
	if w == nil {
		return ErrNilWriter
	}
	if r == nil {
		r = NewDOTRenderer()
	}
	return r.Render(w, g)
}

// RendererFor returns the renderer for a format name ("dot" or "mermaid").
func RendererFor(format string, rankDir string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "dot":
		return NewDOTRenderer(DOTWithRankDir(rankDir)), nil
	case "mermaid":
		return &MermaidRenderer{Direction: rankDir}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// DOTOption configures the behaviour of DOTRenderer.
type DOTOption func(*DOTRenderer)

// DOTWithGraphName overrides the DOT graph identifier.
func DOTWithGraphName(name string) DOTOption {
	return func(r *DOTRenderer) {
		if name != "" {
			r.graphName = name
		}
	}
}

// DOTWithRankDir sets the rank direction (e.g. "LR", "TB") for the exported DOT graph.
func DOTWithRankDir(rankDir string) DOTOption {
	return func(r *DOTRenderer) {
		if rankDir != "" {
			r.rankDir = rankDir
		}
	}
}

// DOTRenderer renders graphs in Graphviz DOT format. Labelled dependencies
// become edge labels.
type DOTRenderer struct {
	graphName string
	rankDir   string
}

// NewDOTRenderer creates a DOT renderer. The graph name defaults to the
// graph's own name.
func NewDOTRenderer(opts ...DOTOption) *DOTRenderer {
	r := &DOTRenderer{rankDir: "LR"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render implements Renderer.
func (r *DOTRenderer) Render(w io.Writer, g *Graph) error {
	if w == nil {
		return ErrNilWriter
	}

	name := r.graphName
	if name == "" {
		name = g.Name()
	}
	if name == "" {
		name = "pipedag"
	}

	if _, err := fmt.Fprintf(w, "digraph %s {\n", dotQuoteIdentifier(name)); err != nil {
		return err
	}
	if r.rankDir != "" {
		if _, err := fmt.Fprintf(w, "    rankdir=%s;\n", r.rankDir); err != nil {
			return err
		}
	}

	for _, step := range g.Names() {
		if _, err := fmt.Fprintf(w, "    %s;\n", dotQuoteIdentifier(step)); err != nil {
			return err
		}
	}

	for _, e := range g.Edges() {
		var err error
		if e.Label != nil {
			_, err = fmt.Fprintf(w, "    %s -> %s [label=%s];\n",
				dotQuoteIdentifier(e.From), dotQuoteIdentifier(e.To), dotQuoteIdentifier(fmt.Sprint(e.Label)))
		} else {
			_, err = fmt.Fprintf(w, "    %s -> %s;\n", dotQuoteIdentifier(e.From), dotQuoteIdentifier(e.To))
		}
		if err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, "}\n")
	return err
}

func dotQuoteIdentifier(name string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range name {
		switch r {
		case '\\', '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// MermaidRenderer renders graphs as a Mermaid flowchart. Step names are
// mapped to positional ids (s0, s1, ...) since Mermaid ids are restricted.
type MermaidRenderer struct {
	// Direction is LR, TB, RL or BT. Defaults to LR.
	Direction string
}

// Render implements Renderer.
func (r *MermaidRenderer) Render(w io.Writer, g *Graph) error {
	if w == nil {
		return ErrNilWriter
	}

	dir := r.Direction
	if dir == "" {
		dir = "LR"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "flowchart %s\n", dir)

	ids := make(map[string]string, g.Len())
	for i, name := range g.Names() {
		id := fmt.Sprintf("s%d", i)
		ids[name] = id
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", id, mermaidEscape(name))
	}
	for _, e := range g.Edges() {
		if e.Label != nil {
			fmt.Fprintf(&b, "    %s -->|%s| %s\n", ids[e.From], mermaidEscape(fmt.Sprint(e.Label)), ids[e.To])
		} else {
			fmt.Fprintf(&b, "    %s --> %s\n", ids[e.From], ids[e.To])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func mermaidEscape(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "|", "#124;").Replace(s)
}
