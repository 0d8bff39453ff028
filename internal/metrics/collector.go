// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/pipedag/types"
	"github.com/BaSui01/pipedag/workflow"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现 workflow.Observer
type Collector struct {
	registry *prometheus.Registry

	// 构建器指标
	stepsAdded     prometheus.Counter
	stepDeps       prometheus.Histogram
	stepRejections *prometheus.CounterVec
	buildsTotal    *prometheus.CounterVec
	graphNodes     prometheus.Gauge
	graphEdges     prometheus.Gauge

	// 定义存储指标
	storeOpDuration *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	logger *zap.Logger
}

var _ workflow.Observer = (*Collector)(nil)

// NewCollector 创建指标收集器。reg 为 nil 时使用独立的 Registry。
func NewCollector(namespace string, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// 构建器指标
	c.stepsAdded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "steps_added_total",
		Help:      "Total number of steps accepted by DAG builders",
	})

	c.stepDeps = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_dependencies",
		Help:      "Number of dependencies declared per accepted step",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
	})

	c.stepRejections = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_rejections_total",
			Help:      "Total number of rejected steps by error code",
		},
		[]string{"code"},
	)

	c.buildsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of Build calls by outcome",
		},
		[]string{"status"},
	)

	c.graphNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_nodes",
		Help:      "Node count of the most recently built graph",
	})

	c.graphEdges = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "graph_edges",
		Help:      "Edge count of the most recently built graph",
	})

	// 定义存储指标
	c.storeOpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Definition store operation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation", "status"},
	)

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_hits_total",
		Help:      "Total number of definition store hits",
	})

	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_misses_total",
		Help:      "Total number of definition store misses",
	})

	return c
}

// Registry 返回底层 Registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// 🧱 构建器事件
// =============================================================================

// StepAdded 记录一个被接受的步骤
func (c *Collector) StepAdded(_ string, deps int) {
	c.stepsAdded.Inc()
	c.stepDeps.Observe(float64(deps))
}

// StepRejected 按错误码记录被拒绝的步骤
func (c *Collector) StepRejected(code types.ErrorCode) {
	c.stepRejections.WithLabelValues(string(code)).Inc()
}

// GraphBuilt 记录一次 Build 调用
func (c *Collector) GraphBuilt(nodes, edges int, err error) {
	if err != nil {
		c.buildsTotal.WithLabelValues("error").Inc()
		return
	}
	c.buildsTotal.WithLabelValues("ok").Inc()
	c.graphNodes.Set(float64(nodes))
	c.graphEdges.Set(float64(edges))
}

// =============================================================================
// 💾 定义存储事件
// =============================================================================

// RecordStoreOp 记录定义存储操作耗时
func (c *Collector) RecordStoreOp(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeOpDuration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordCacheHit 记录命中
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss 记录未命中
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// =============================================================================
// 📝 导出
// =============================================================================

// WriteTextfile 以 node_exporter textfile 格式写出所有指标
func (c *Collector) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	c.logger.Debug("metrics textfile written", zap.String("path", path))
	return nil
}
