package workflow

import (
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/pipedag/types"
)

// Observer receives construction events. internal/metrics.Collector
// implements it.
type Observer interface {
	StepAdded(name string, deps int)
	StepRejected(code types.ErrorCode)
	GraphBuilt(nodes, edges int, err error)
}

type nopObserver struct{}

func (nopObserver) StepAdded(string, int)        {}
func (nopObserver) StepRejected(types.ErrorCode) {}
func (nopObserver) GraphBuilt(int, int, error)   {}

// DAGBuilder incrementally constructs a graph of steps. Every AddStep either
// fully succeeds or leaves the graph exactly as it was.
//
// A builder is not safe for concurrent use; calls must be issued by a single
// owner.
type DAGBuilder struct {
	store       *dagStore
	edges       int
	name        string
	parallelism int
	logger      *zap.Logger
	observer    Observer
	err         error
}

// BuilderOption configures a DAGBuilder.
type BuilderOption func(*DAGBuilder)

// WithParallelism sets the parallelism hint forwarded to every built graph.
func WithParallelism(n int) BuilderOption {
	return func(b *DAGBuilder) {
		b.parallelism = n
	}
}

// WithName names the graph.
func WithName(name string) BuilderOption {
	return func(b *DAGBuilder) {
		b.name = name
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) BuilderOption {
	return func(b *DAGBuilder) {
		if logger != nil {
			b.logger = logger.With(zap.String("component", "dag_builder"))
		}
	}
}

// WithObserver attaches an observer for construction events.
func WithObserver(o Observer) BuilderOption {
	return func(b *DAGBuilder) {
		if o != nil {
			b.observer = o
		}
	}
}

// NewDAGBuilder creates an empty builder.
func NewDAGBuilder(opts ...BuilderOption) *DAGBuilder {
	b := &DAGBuilder{
		store:    newDAGStore(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the configured graph name.
func (b *DAGBuilder) Name() string {
	return b.name
}

// Parallelism returns the configured parallelism hint.
func (b *DAGBuilder) Parallelism() int {
	return b.parallelism
}

// Len returns the number of registered steps.
func (b *DAGBuilder) Len() int {
	return len(b.store.nodes)
}

// EdgeCount returns the number of registered edges.
func (b *DAGBuilder) EdgeCount() int {
	return b.edges
}

// Has reports whether a step with the given name is registered.
func (b *DAGBuilder) Has(name string) bool {
	_, ok := b.store.index[name]
	return ok
}

// AddStep registers a step. deps may be nil, a sequence of names or a map
// of names to labels (see NormalizeDeps). Every dependency must already be
// registered.
func (b *DAGBuilder) AddStep(name string, payload any, deps any) error {
	if err := b.validateName(name); err != nil {
		return b.reject(name, err)
	}

	normalized, err := NormalizeDeps(deps)
	if err != nil {
		var shapeErr *types.Error
		if errors.As(err, &shapeErr) {
			shapeErr.WithStep(name)
		}
		return b.reject(name, err)
	}
	if normalized == nil {
		normalized = Deps{}
	}

	depIdx, err := b.resolve(name, normalized)
	if err != nil {
		return b.reject(name, err)
	}

	b.store.append(Step{Name: name, Payload: payload, Deps: normalized}, depIdx)

	// Only fails when existing nodes were linked outside AddStep.
	if !b.store.acyclic(len(b.store.nodes)) {
		b.store.rollback()
		return b.reject(name, types.NewError(types.ErrCycleDetected, "workflow is not a DAG").WithStep(name))
	}

	b.edges += len(depIdx)
	b.observer.StepAdded(name, len(depIdx))
	b.logger.Debug("step added",
		zap.String("step", name),
		zap.Strings("deps", normalized.Names()),
	)
	return nil
}

// Step is the chaining form of AddStep. The first failure is kept: later
// calls are skipped and the error is reported by Err and Build.
func (b *DAGBuilder) Step(name string, payload any, deps any) *DAGBuilder {
	if b.err != nil {
		return b
	}
	b.err = b.AddStep(name, payload, deps)
	return b
}

// Err returns the first error recorded by Step.
func (b *DAGBuilder) Err() error {
	return b.err
}

// Build re-checks acyclicity and returns a read-only view over the current
// steps. The builder stays usable; each call yields an independent view.
func (b *DAGBuilder) Build() (*Graph, error) {
	if b.err != nil {
		b.observer.GraphBuilt(0, 0, b.err)
		return nil, b.err
	}

	n := len(b.store.nodes)
	if !b.store.acyclic(n) {
		err := types.NewError(types.ErrCycleDetected, "workflow is not a DAG")
		b.observer.GraphBuilt(n, b.edges, err)
		b.logger.Warn("graph build rejected", zap.Error(err))
		return nil, err
	}

	g := &Graph{
		id:          uuid.NewString(),
		name:        b.name,
		parallelism: b.parallelism,
		store:       b.store,
		n:           n,
	}

	b.observer.GraphBuilt(n, b.edges, nil)
	b.logger.Info("DAG built",
		zap.String("graph_id", g.id),
		zap.String("name", b.name),
		zap.Int("nodes", n),
		zap.Int("edges", b.edges),
	)
	return g, nil
}

func (b *DAGBuilder) validateName(name string) error {
	if strings.TrimSpace(name) == "" || !utf8.ValidString(name) {
		return types.NewError(types.ErrInvalidStepName, "step names must be non-empty UTF-8 strings").WithStep(name)
	}
	if b.Has(name) {
		return types.NewError(types.ErrDuplicateStepName, "step with this name already exists").WithStep(name)
	}
	return nil
}

// resolve maps dependency names to arena indices in insertion order,
// reporting every missing name at once.
func (b *DAGBuilder) resolve(name string, deps Deps) ([]int, error) {
	var missing []string
	idx := make([]int, 0, len(deps))
	for _, dep := range deps.Names() {
		i, ok := b.store.index[dep]
		if !ok {
			missing = append(missing, dep)
			continue
		}
		idx = append(idx, i)
	}
	if len(missing) > 0 {
		return nil, types.NewError(types.ErrUnresolvedDependency,
			"unresolvable dependencies: "+strings.Join(missing, ", ")).
			WithStep(name).
			WithNames(missing)
	}
	slices.Sort(idx)
	return idx, nil
}

func (b *DAGBuilder) reject(name string, err error) error {
	code := types.GetErrorCode(err)
	b.observer.StepRejected(code)
	b.logger.Warn("step rejected",
		zap.String("step", name),
		zap.String("code", string(code)),
		zap.Error(err),
	)
	return err
}
