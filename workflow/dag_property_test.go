package workflow

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Property: random successful AddStep sequences always yield an acyclic graph with unique names
func TestProperty_RandomDAGStaysValid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := NewDAGBuilder()
		attempts := rapid.IntRange(1, 40).Draw(rt, "attempts")

		for i := 0; i < attempts; i++ {
			name := fmt.Sprintf("s%d", rapid.IntRange(0, 25).Draw(rt, fmt.Sprintf("name_%d", i)))
			depCount := rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("deps_%d", i))
			deps := make([]string, 0, depCount)
			for j := 0; j < depCount; j++ {
				deps = append(deps, fmt.Sprintf("s%d", rapid.IntRange(0, 25).Draw(rt, fmt.Sprintf("dep_%d_%d", i, j))))
			}

			before, beforeEdges := b.Len(), b.EdgeCount()
			if err := b.AddStep(name, i, deps); err != nil {
				// Failed calls leave the graph untouched.
				require.Equal(rt, before, b.Len())
				require.Equal(rt, beforeEdges, b.EdgeCount())
			}
		}

		g, err := b.Build()
		require.NoError(rt, err)

		seen := make(map[string]bool, g.Len())
		position := make(map[string]int, g.Len())
		for i, name := range g.Names() {
			require.False(rt, seen[name], "duplicate step %s", name)
			seen[name] = true
			position[name] = i
		}

		// Every edge points forward in insertion order, so the order is topological.
		for _, e := range g.Edges() {
			require.Less(rt, position[e.From], position[e.To])
		}

		total := 0
		for _, layer := range g.Layers() {
			total += len(layer)
		}
		require.Equal(rt, g.Len(), total)
	})
}

// Property: an unresolved add reports every missing name and nothing else
func TestProperty_UnresolvedReportsAllMissing(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		b := NewDAGBuilder()
		known := rapid.IntRange(0, 5).Draw(rt, "known")
		for i := 0; i < known; i++ {
			require.NoError(rt, b.AddStep(fmt.Sprintf("k%d", i), nil, nil))
		}

		missing := rapid.SliceOfNDistinct(rapid.StringMatching(`m[a-z]{1,6}`), 1, 5, rapid.ID[string]).Draw(rt, "missing")
		deps := append([]string(nil), missing...)
		for i := 0; i < known; i++ {
			deps = append(deps, fmt.Sprintf("k%d", i))
		}

		err := b.AddStep("target", nil, deps)
		require.True(rt, errors.Is(err, ErrUnresolvedDependency))
		for _, name := range missing {
			assert.Contains(rt, err.Error(), name)
		}
		assert.Equal(rt, known, b.Len())
	})
}

// Property: duplicate names are always rejected without changing node or edge counts
func TestProperty_DuplicateNameRejected(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("re-adding any registered name fails", prop.ForAll(
		func(nodeCount int, pick int) bool {
			b := NewDAGBuilder()
			for i := 0; i < nodeCount; i++ {
				var deps []string
				if i > 0 {
					deps = []string{fmt.Sprintf("n%d", i-1)}
				}
				if err := b.AddStep(fmt.Sprintf("n%d", i), nil, deps); err != nil {
					t.Logf("AddStep failed: %v", err)
					return false
				}
			}

			nodes, edges := b.Len(), b.EdgeCount()
			err := b.AddStep(fmt.Sprintf("n%d", pick%nodeCount), nil, nil)
			if !errors.Is(err, ErrDuplicateName) {
				t.Logf("Expected duplicate error, got %v", err)
				return false
			}
			return b.Len() == nodes && b.EdgeCount() == edges
		},
		gen.IntRange(1, 10),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// Property: sequence and mapping dependency forms produce identical edges
func TestProperty_SequenceMappingEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("[a, b] equals {a: nil, b: nil}", prop.ForAll(
		func(nodeCount int) bool {
			names := make([]string, 0, nodeCount)
			mapping := make(map[string]any, nodeCount)
			for i := 0; i < nodeCount; i++ {
				name := string(rune('a' + i))
				names = append(names, name)
				mapping[name] = nil
			}

			build := func(deps any) []Edge {
				b := NewDAGBuilder()
				for _, name := range names {
					if err := b.AddStep(name, nil, nil); err != nil {
						return nil
					}
				}
				if err := b.AddStep("sink", nil, deps); err != nil {
					return nil
				}
				g, err := b.Build()
				if err != nil {
					return nil
				}
				return g.Edges()
			}

			seq := build(names)
			mapped := build(mapping)
			if len(seq) != nodeCount || len(seq) != len(mapped) {
				return false
			}
			for i := range seq {
				if seq[i] != mapped[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
