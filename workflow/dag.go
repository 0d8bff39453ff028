package workflow

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sort"

	"github.com/BaSui01/pipedag/types"
)

var (
	// ErrInvalidName indicates a step name that is empty, blank or not valid UTF-8.
	ErrInvalidName = &types.Error{Code: types.ErrInvalidStepName}
	// ErrDuplicateName indicates a step name collision within the same graph.
	ErrDuplicateName = &types.Error{Code: types.ErrDuplicateStepName}
	// ErrInvalidDependencyShape indicates deps that are neither a sequence of names nor a string-keyed mapping.
	ErrInvalidDependencyShape = &types.Error{Code: types.ErrInvalidDependencyShape}
	// ErrUnresolvedDependency indicates one or more dependencies that are not registered yet.
	ErrUnresolvedDependency = &types.Error{Code: types.ErrUnresolvedDependency}
	// ErrCycle indicates the graph is not acyclic.
	ErrCycle = &types.Error{Code: types.ErrCycleDetected}
)

// Deps maps a dependency step name to an optional label. A nil label means
// the whole output of the dependency is selected. Labels are carried for the
// execution layer and never resolved here.
type Deps map[string]any

// After builds the sequence form of a dependency declaration: every name
// maps to a nil label.
func After(names ...string) Deps {
	deps := make(Deps, len(names))
	for _, name := range names {
		deps[name] = nil
	}
	return deps
}

// Names returns the dependency names, sorted.
func (d Deps) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeDeps converts a caller-supplied dependency declaration into Deps.
//
// Accepted shapes are nil, any map whose key kind is string (labels are kept
// as-is), map[any]any with string keys, any slice or array whose element kind
// is string, and []any of strings. Sequence forms map each name to a nil
// label.
func NormalizeDeps(v any) (Deps, error) {
	switch deps := v.(type) {
	case nil:
		return Deps{}, nil
	case Deps:
		return maps.Clone(deps), nil
	case map[string]any:
		return Deps(maps.Clone(deps)), nil
	case map[string]string:
		out := make(Deps, len(deps))
		for name, label := range deps {
			out[name] = label
		}
		return out, nil
	case map[any]any:
		out := make(Deps, len(deps))
		for key, label := range deps {
			name, ok := key.(string)
			if !ok {
				return nil, shapeError(fmt.Sprintf("dependency keys must be strings, got %T", key))
			}
			out[name] = label
		}
		return out, nil
	case []string:
		return After(deps...), nil
	case []any:
		out := make(Deps, len(deps))
		for _, item := range deps {
			name, ok := item.(string)
			if !ok {
				return nil, shapeError(fmt.Sprintf("dependency names must be strings, got %T", item))
			}
			out[name] = nil
		}
		return out, nil
	default:
		return reflectDeps(v)
	}
}

// reflectDeps handles named string types and maps with arbitrary label types.
func reflectDeps(v any) (Deps, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, shapeError(fmt.Sprintf("dependency keys must be strings, got %s", rv.Type().Key()))
		}
		out := make(Deps, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.String {
			return nil, shapeError(fmt.Sprintf("dependency names must be strings, got %s", rv.Type().Elem()))
		}
		out := make(Deps, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[rv.Index(i).String()] = nil
		}
		return out, nil
	}
	return nil, shapeError(fmt.Sprintf("deps must be a sequence of names or a map of names to labels, got %T", v))
}

func shapeError(msg string) *types.Error {
	return types.NewError(types.ErrInvalidDependencyShape, msg)
}

// Step is a named unit of work forming one node of the graph.
type Step struct {
	// Name is unique within a graph and is the handle other steps depend on.
	Name string
	// Payload is the caller's work item. It is never inspected.
	Payload any
	// Deps holds the normalized dependency declaration.
	Deps Deps
}

// Edge is a depends-on relationship, directed from the dependency to the dependent.
type Edge struct {
	From  string
	To    string
	Label any
}

type dagNode struct {
	step Step
	// in holds dependency indices in insertion order.
	in []int
	// out holds dependent indices in the order they were added.
	out []int
}

// dagStore is an append-only arena of nodes. Every edge points from a lower
// index to a higher one when built through AddStep, so any prefix of the
// arena is itself a closed, valid graph.
type dagStore struct {
	nodes []*dagNode
	index map[string]int
}

func newDAGStore() *dagStore {
	return &dagStore{index: make(map[string]int)}
}

func (s *dagStore) append(step Step, deps []int) {
	idx := len(s.nodes)
	s.nodes = append(s.nodes, &dagNode{step: step, in: deps})
	s.index[step.Name] = idx
	for _, dep := range deps {
		s.nodes[dep].out = append(s.nodes[dep].out, idx)
	}
}

// rollback removes the most recently appended node and its incoming edges.
func (s *dagStore) rollback() {
	last := len(s.nodes) - 1
	if last < 0 {
		return
	}
	n := s.nodes[last]
	for _, dep := range n.in {
		out := s.nodes[dep].out
		if i := slices.Index(out, last); i >= 0 {
			s.nodes[dep].out = slices.Delete(out, i, i+1)
		}
	}
	delete(s.index, n.step.Name)
	s.nodes[last] = nil
	s.nodes = s.nodes[:last]
}

// layers runs Kahn's algorithm over the first n nodes and groups them by
// depth. ok is false when some node never reaches in-degree zero.
func (s *dagStore) layers(n int) (layers [][]int, ok bool) {
	indegree := make([]int, n)
	for i := 0; i < n; i++ {
		indegree[i] = len(s.nodes[i].in)
	}

	current := make([]int, 0)
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			current = append(current, i)
		}
	}

	seen := 0
	for len(current) > 0 {
		layers = append(layers, current)
		seen += len(current)
		next := make([]int, 0)
		for _, idx := range current {
			for _, dep := range s.nodes[idx].out {
				if dep >= n {
					continue
				}
				indegree[dep]--
				if indegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		slices.Sort(next)
		current = next
	}

	return layers, seen == n
}

func (s *dagStore) acyclic(n int) bool {
	_, ok := s.layers(n)
	return ok
}

// Graph is the frozen, read-only result of DAGBuilder.Build. It shares
// storage with the builder and covers the steps registered when it was
// built. Readers may use it concurrently as long as the builder is no longer
// mutated.
//
// Steps are always reported in insertion order, which is also a
// topological order: dependencies must be registered before dependents.
type Graph struct {
	id          string
	name        string
	parallelism int
	store       *dagStore
	n           int
}

// ID returns the identifier of this view. Every Build call yields a new one.
func (g *Graph) ID() string {
	return g.id
}

// Name returns the graph name configured on the builder.
func (g *Graph) Name() string {
	return g.name
}

// Parallelism returns the hint forwarded unchanged from the builder. Zero means unset.
func (g *Graph) Parallelism() int {
	return g.parallelism
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return g.n
}

func (g *Graph) lookup(name string) (*dagNode, bool) {
	idx, ok := g.store.index[name]
	if !ok || idx >= g.n {
		return nil, false
	}
	return g.store.nodes[idx], true
}

// Step looks up a step by name.
func (g *Graph) Step(name string) (Step, bool) {
	n, ok := g.lookup(name)
	if !ok {
		return Step{}, false
	}
	return cloneStep(n.step), true
}

// Steps returns all steps in insertion order.
func (g *Graph) Steps() []Step {
	steps := make([]Step, 0, g.n)
	for _, n := range g.store.nodes[:g.n] {
		steps = append(steps, cloneStep(n.step))
	}
	return steps
}

// Names returns all step names in insertion order.
func (g *Graph) Names() []string {
	names := make([]string, 0, g.n)
	for _, n := range g.store.nodes[:g.n] {
		names = append(names, n.step.Name)
	}
	return names
}

// Edges returns every edge, grouped by dependent in insertion order and then
// by dependency insertion order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, n := range g.store.nodes[:g.n] {
		for _, dep := range n.in {
			from := g.store.nodes[dep].step.Name
			edges = append(edges, Edge{From: from, To: n.step.Name, Label: n.step.Deps[from]})
		}
	}
	return edges
}

// Dependencies returns the names a step depends on, in insertion order.
func (g *Graph) Dependencies(name string) []string {
	n, ok := g.lookup(name)
	if !ok {
		return nil
	}
	return g.namesOf(n.in)
}

// Dependents returns the names of steps depending on the given step, in insertion order.
func (g *Graph) Dependents(name string) []string {
	n, ok := g.lookup(name)
	if !ok {
		return nil
	}
	return g.namesOf(n.out)
}

// Roots returns the steps without dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for _, n := range g.store.nodes[:g.n] {
		if len(n.in) == 0 {
			roots = append(roots, n.step.Name)
		}
	}
	return roots
}

// Leaves returns the steps nothing depends on.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, n := range g.store.nodes[:g.n] {
		if len(g.visible(n.out)) == 0 {
			leaves = append(leaves, n.step.Name)
		}
	}
	return leaves
}

// Layers groups steps by dependency depth. Steps within a layer do not depend
// on each other and are listed in insertion order.
func (g *Graph) Layers() [][]string {
	layers, _ := g.store.layers(g.n)
	out := make([][]string, 0, len(layers))
	for _, layer := range layers {
		out = append(out, g.namesOf(layer))
	}
	return out
}

func (g *Graph) visible(idxs []int) []int {
	out := make([]int, 0, len(idxs))
	for _, idx := range idxs {
		if idx < g.n {
			out = append(out, idx)
		}
	}
	return out
}

func (g *Graph) namesOf(idxs []int) []string {
	idxs = g.visible(idxs)
	names := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		names = append(names, g.store.nodes[idx].step.Name)
	}
	return names
}

func cloneStep(s Step) Step {
	s.Deps = maps.Clone(s.Deps)
	return s
}
