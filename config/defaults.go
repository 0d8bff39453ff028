// =============================================================================
// 📦 pipedag 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Builder:   DefaultBuilderConfig(),
		Render:    DefaultRenderConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultBuilderConfig 返回默认构建器配置
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Name:        "",
		Parallelism: 0,
	}
}

// DefaultRenderConfig 返回默认渲染配置
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Format:  "dot",
		RankDir: "LR",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "pipedag:def:",
		DefaultTTL:   0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		TLSEnabled:   false,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "pipedag",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:    "pipedag",
		TextfilePath: "",
	}
}
