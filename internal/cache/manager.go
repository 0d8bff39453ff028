// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/pipedag/internal/ctxkeys"
	"github.com/BaSui01/pipedag/internal/tlsutil"
	"github.com/BaSui01/pipedag/types"
	"github.com/BaSui01/pipedag/workflow"
)

const instrumentationName = "github.com/BaSui01/pipedag/internal/cache"

// loadTimeout 限制共享读取的时长，共享读取不随单个调用方取消
const loadTimeout = 5 * time.Second

// ErrDefinitionNotFound 定义不存在
var ErrDefinitionNotFound = &types.Error{Code: types.ErrDefinitionNotFound, Message: "definition not found"}

// ErrClosed 管理器已关闭
var ErrClosed = errors.New("definition store is closed")

// =============================================================================
// 💾 定义存储管理器
// =============================================================================

// Recorder 接收存储操作事件，metrics.Collector 实现了该接口
type Recorder interface {
	RecordStoreOp(operation string, duration time.Duration, err error)
	RecordCacheHit()
	RecordCacheMiss()
}

type nopRecorder struct{}

func (nopRecorder) RecordStoreOp(string, time.Duration, error) {}
func (nopRecorder) RecordCacheHit()                            {}
func (nopRecorder) RecordCacheMiss()                           {}

// Manager 基于 Redis 的 DAG 定义存储
type Manager struct {
	redis    *redis.Client
	config   Config
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
	loads    singleflight.Group
	mu       sync.RWMutex
	closed   bool
}

// Config 存储配置
type Config struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 键前缀
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`

	// 默认过期时间，0 表示永不过期
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 最小空闲连接数
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns"`

	// 启用 TLS
	TLSEnabled bool `yaml:"tls_enabled" json:"tls_enabled"`
}

// DefaultConfig 返回默认存储配置
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		KeyPrefix:    "pipedag:def:",
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Option 配置 Manager
type Option func(*Manager)

// WithRecorder 设置指标记录器
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// NewManager 创建定义存储管理器并检查连接
func NewManager(config Config, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	redisOpts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
	}
	if config.TLSEnabled {
		redisOpts.TLSConfig = tlsutil.ClientConfig(config.Addr)
	}
	client := redis.NewClient(redisOpts)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	m := &Manager{
		redis:    client,
		config:   config,
		logger:   logger.With(zap.String("component", "definition_store")),
		tracer:   otel.Tracer(instrumentationName),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger.Info("definition store initialized",
		zap.String("addr", config.Addr),
		zap.String("key_prefix", config.KeyPrefix),
	)

	return m, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Save 校验并保存定义。ttl 为 0 时使用默认过期时间。
func (m *Manager) Save(ctx context.Context, def *workflow.DAGDefinition, ttl time.Duration) (err error) {
	if def == nil {
		return types.NewError(types.ErrInvalidDefinition, "definition is nil")
	}
	ctx, done := m.start(ctx, "save", def.Name)
	defer func() { done(err) }()

	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := workflow.ValidateDAGDefinition(def); err != nil {
		return err
	}

	data, err := def.ToJSON()
	if err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if err := m.redis.Set(ctx, m.key(def.Name), data, ttl).Err(); err != nil {
		m.logger.Error("definition save failed", zap.String("name", def.Name), zap.Error(err))
		return fmt.Errorf("definition save failed: %w", err)
	}

	m.logger.Debug("definition saved",
		zap.String("name", def.Name),
		zap.Int("steps", len(def.Steps)),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Load 读取并校验定义。并发读取同一名称时只访问一次 Redis，
// 每个调用方拿到各自解码的副本。调用方取消只影响自身的等待，
// 不会中断其他调用方共享的读取。
func (m *Manager) Load(ctx context.Context, name string) (def *workflow.DAGDefinition, err error) {
	ctx, done := m.start(ctx, "load", name)
	defer func() { done(err) }()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := m.loads.DoChan(name, func() (any, error) {
		return m.fetch(ctx, name)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	raw, err := res.Val, res.Err
	if errors.Is(err, redis.Nil) {
		m.recorder.RecordCacheMiss()
		return nil, types.NewError(types.ErrDefinitionNotFound, "definition not found").
			WithNames([]string{name})
	}
	if err != nil {
		m.logger.Error("definition load failed", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("definition load failed: %w", err)
	}
	m.recorder.RecordCacheHit()

	return workflow.FromJSON(raw.(string))
}

// fetch 读取原始 JSON，脱离调用方的取消信号，仅受 loadTimeout 约束
func (m *Manager) fetch(ctx context.Context, name string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()
	return m.redis.Get(fetchCtx, m.key(name)).Result()
}

// Delete 删除定义
func (m *Manager) Delete(ctx context.Context, names ...string) (err error) {
	if len(names) == 0 {
		return nil
	}
	ctx, done := m.start(ctx, "delete", strings.Join(names, ","))
	defer func() { done(err) }()

	if err := m.checkOpen(); err != nil {
		return err
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = m.key(name)
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		m.logger.Error("definition delete failed", zap.Strings("names", names), zap.Error(err))
		return fmt.Errorf("definition delete failed: %w", err)
	}
	return nil
}

// List 列出所有已保存定义的名称（已排序）
func (m *Manager) List(ctx context.Context) (names []string, err error) {
	ctx, done := m.start(ctx, "list", "")
	defer func() { done(err) }()

	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	iter := m.redis.Scan(ctx, 0, m.config.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), m.config.KeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("definition list failed: %w", err)
	}

	slices.Sort(names)
	return slices.Compact(names), nil
}

// Ping 检查 Redis 连接
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.redis.Ping(ctx).Err()
}

// Close 关闭管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	m.logger.Info("closing definition store")

	return m.redis.Close()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (m *Manager) key(name string) string {
	return m.config.KeyPrefix + name
}

func (m *Manager) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// start 开启 span 并返回结束回调，回调负责记录耗时与错误
func (m *Manager) start(ctx context.Context, op, name string) (context.Context, func(error)) {
	attrs := []attribute.KeyValue{
		attribute.String("pipedag.operation", op),
		attribute.String("pipedag.definition", name),
	}
	if runID, ok := ctxkeys.RunID(ctx); ok {
		attrs = append(attrs, attribute.String("pipedag.run_id", runID))
	}
	ctx, span := m.tracer.Start(ctx, "definition_store."+op, trace.WithAttributes(attrs...))
	began := time.Now()

	return ctx, func(err error) {
		defer span.End()
		m.recorder.RecordStoreOp(op, time.Since(began), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
}

// IsNotFound 判断是否为定义不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}
