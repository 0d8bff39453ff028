package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/pipedag/config"
	"github.com/BaSui01/pipedag/internal/cache"
	"github.com/BaSui01/pipedag/internal/ctxkeys"
	"github.com/BaSui01/pipedag/internal/metrics"
	"github.com/BaSui01/pipedag/internal/telemetry"
	"github.com/BaSui01/pipedag/workflow"
)

// errUsage marks errors caused by bad command-line input.
var errUsage = errors.New("usage error")

// commandFunc registers the command's flags and returns its body.
type commandFunc func(fs *flag.FlagSet) func(ctx context.Context, e *env, args []string) error

// env holds what every command shares once config is loaded.
type env struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Collector
	providers *telemetry.Providers
	stdout    io.Writer
}

func runCommand(name string, args []string, stdout, stderr io.Writer, define commandFunc) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	body := define(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = ctxkeys.WithRunID(ctx, runID)

	e, err := newEnv(ctx, *configPath, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}
	defer e.close()
	e.logger = e.logger.With(zap.String("command", name), zap.String("run_id", runID))

	if err := body(ctx, e, fs.Args()); err != nil {
		e.logger.Debug("command failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fs.Usage()
			return exitUsage
		}
		return exitFailure
	}
	return exitOK
}

func newEnv(ctx context.Context, configPath string, stdout io.Writer) (*env, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(configPath).
		WithValidator((*config.Config).Validate).
		Load()
	if err != nil {
		return nil, err
	}

	logger := initLogger(cfg.Log)

	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	return &env{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics.NewCollector(cfg.Metrics.Namespace, nil, logger),
		providers: providers,
		stdout:    stdout,
	}, nil
}

func (e *env) close() {
	if err := e.metrics.WriteTextfile(e.cfg.Metrics.TextfilePath); err != nil {
		e.logger.Warn("failed to write metrics", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.providers.Shutdown(ctx); err != nil {
		e.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	_ = e.logger.Sync()
}

// compile builds a definition with the configured logger, observer and
// parallelism fallback.
func (e *env) compile(def *workflow.DAGDefinition) (*workflow.Graph, error) {
	opts := []workflow.BuilderOption{
		workflow.WithLogger(e.logger),
		workflow.WithObserver(e.metrics),
	}
	if def.Parallelism == 0 && e.cfg.Builder.Parallelism > 0 {
		opts = append(opts, workflow.WithParallelism(e.cfg.Builder.Parallelism))
	}

	b, err := workflow.Compile(def, nil, opts...)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func (e *env) openStore() (*cache.Manager, error) {
	r := e.cfg.Redis
	return cache.NewManager(cache.Config{
		Addr:         r.Addr,
		Password:     r.Password,
		DB:           r.DB,
		KeyPrefix:    r.KeyPrefix,
		DefaultTTL:   r.DefaultTTL,
		MaxRetries:   r.MaxRetries,
		PoolSize:     r.PoolSize,
		MinIdleConns: r.MinIdleConns,
		TLSEnabled:   r.TLSEnabled,
	}, e.logger, cache.WithRecorder(e.metrics))
}

// =============================================================================
// ✅ validate
// =============================================================================

type validateResult struct {
	path  string
	nodes int
	edges int
	err   error
}

func cmdValidate(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	file := fs.String("f", "", "Pipeline definition file (YAML or JSON)")

	return func(ctx context.Context, e *env, args []string) error {
		paths := args
		if *file != "" {
			paths = append([]string{*file}, args...)
		}
		if len(paths) == 0 {
			return fmt.Errorf("%w: at least one definition file is required", errUsage)
		}

		limit := e.cfg.Builder.Parallelism
		if limit <= 0 {
			limit = 4
		}

		results := make([]validateResult, len(paths))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = validateFile(e, path)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				fmt.Fprintf(e.stdout, "FAIL %s: %v\n", r.path, r.err)
				continue
			}
			fmt.Fprintf(e.stdout, "ok   %s (%d steps, %d edges)\n", r.path, r.nodes, r.edges)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d definitions invalid", failed, len(results))
		}
		return nil
	}
}

func validateFile(e *env, path string) validateResult {
	res := validateResult{path: path}
	def, err := workflow.LoadFromFile(path)
	if err != nil {
		res.err = err
		return res
	}
	g, err := e.compile(def)
	if err != nil {
		res.err = err
		return res
	}
	res.nodes = g.Len()
	res.edges = len(g.Edges())
	return res
}

// =============================================================================
// 🎨 render / order
// =============================================================================

func cmdRender(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	file := fs.String("f", "", "Pipeline definition file (YAML or JSON)")
	format := fs.String("format", "", "Output format: dot or mermaid (default from config)")
	rankDir := fs.String("rankdir", "", "Layout direction: LR, TB, RL or BT (default from config)")
	out := fs.String("o", "", "Output file (default stdout)")

	return func(_ context.Context, e *env, _ []string) error {
		g, err := loadGraph(e, *file)
		if err != nil {
			return err
		}

		r, err := workflow.RendererFor(
			firstNonEmpty(*format, e.cfg.Render.Format),
			firstNonEmpty(*rankDir, e.cfg.Render.RankDir),
		)
		if err != nil {
			return err
		}

		return writeOutput(e, *out, func(w io.Writer) error {
			return g.Render(w, r)
		})
	}
}

func cmdOrder(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	file := fs.String("f", "", "Pipeline definition file (YAML or JSON)")
	layers := fs.Bool("layers", false, "Group steps that can run together")

	return func(_ context.Context, e *env, _ []string) error {
		g, err := loadGraph(e, *file)
		if err != nil {
			return err
		}

		if *layers {
			for i, layer := range g.Layers() {
				fmt.Fprintf(e.stdout, "%d: %s\n", i, strings.Join(layer, " "))
			}
			return nil
		}
		for _, name := range g.Names() {
			fmt.Fprintln(e.stdout, name)
		}
		return nil
	}
}

func loadGraph(e *env, path string) (*workflow.Graph, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: -f is required", errUsage)
	}
	def, err := workflow.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return e.compile(def)
}

// =============================================================================
// 💾 push / pull / list / delete
// =============================================================================

func cmdPush(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	file := fs.String("f", "", "Pipeline definition file (YAML or JSON)")
	ttl := fs.Duration("ttl", 0, "Expiry for the saved definition (default from config)")

	return func(ctx context.Context, e *env, _ []string) error {
		if *file == "" {
			return fmt.Errorf("%w: -f is required", errUsage)
		}
		def, err := workflow.LoadFromFile(*file)
		if err != nil {
			return err
		}

		store, err := e.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Save(ctx, def, *ttl); err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "pushed %s (%d steps)\n", def.Name, len(def.Steps))
		return nil
	}
}

func cmdPull(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	name := fs.String("name", "", "Definition name (default builder.name from config)")
	out := fs.String("o", "", "Output file; .json selects JSON (default YAML on stdout)")

	return func(ctx context.Context, e *env, _ []string) error {
		key := firstNonEmpty(*name, e.cfg.Builder.Name)
		if key == "" {
			return fmt.Errorf("%w: -name is required", errUsage)
		}

		store, err := e.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		def, err := store.Load(ctx, key)
		if err != nil {
			return err
		}

		if *out != "" {
			return def.SaveToFile(*out)
		}
		doc, err := def.ToYAML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(e.stdout, doc)
		return err
	}
}

func cmdList(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	return func(ctx context.Context, e *env, _ []string) error {
		store, err := e.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		names, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(e.stdout, name)
		}
		return nil
	}
}

func cmdDelete(fs *flag.FlagSet) func(context.Context, *env, []string) error {
	return func(ctx context.Context, e *env, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("%w: at least one definition name is required", errUsage)
		}

		store, err := e.openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Delete(ctx, args...)
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func writeOutput(e *env, path string, write func(io.Writer) error) (err error) {
	if path == "" {
		return write(e.stdout)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
