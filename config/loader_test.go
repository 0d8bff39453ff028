// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0, cfg.Builder.Parallelism)
	assert.Equal(t, "dot", cfg.Render.Format)
	assert.Equal(t, "LR", cfg.Render.RankDir)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "pipedag:def:", cfg.Redis.KeyPrefix)
	assert.Equal(t, time.Duration(0), cfg.Redis.DefaultTTL)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stderr"}, cfg.Log.OutputPaths)

	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "pipedag", cfg.Telemetry.ServiceName)
	assert.Equal(t, "pipedag", cfg.Metrics.Namespace)

	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pipedag.yaml")
	yamlContent := `
builder:
  name: nightly
  parallelism: 4
render:
  format: mermaid
  rank_dir: TB
redis:
  addr: "redis:6380"
  default_ttl: 1h
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "nightly", cfg.Builder.Name)
	assert.Equal(t, 4, cfg.Builder.Parallelism)
	assert.Equal(t, "mermaid", cfg.Render.Format)
	assert.Equal(t, "TB", cfg.Render.RankDir)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Redis.DefaultTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未在 YAML 中出现的字段保留默认值
	assert.Equal(t, "pipedag:def:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("PIPEDAG_BUILDER_PARALLELISM", "8")
	t.Setenv("PIPEDAG_RENDER_FORMAT", "mermaid")
	t.Setenv("PIPEDAG_REDIS_DEFAULT_TTL", "30m")
	t.Setenv("PIPEDAG_LOG_OUTPUT_PATHS", "stdout, /tmp/pipedag.log")
	t.Setenv("PIPEDAG_TELEMETRY_ENABLED", "true")
	t.Setenv("PIPEDAG_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("PIPEDAG_METRICS_TEXTFILE_PATH", "/var/lib/node_exporter/pipedag.prom")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Builder.Parallelism)
	assert.Equal(t, "mermaid", cfg.Render.Format)
	assert.Equal(t, 30*time.Minute, cfg.Redis.DefaultTTL)
	assert.Equal(t, []string{"stdout", "/tmp/pipedag.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.Equal(t, "/var/lib/node_exporter/pipedag.prom", cfg.Metrics.TextfilePath)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pipedag.yaml")
	yamlContent := `
builder:
  name: from-yaml
redis:
  addr: "yaml-redis:6379"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))
	t.Setenv("PIPEDAG_BUILDER_NAME", "from-env")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Builder.Name)
	assert.Equal(t, "yaml-redis:6379", cfg.Redis.Addr)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_REDIS_ADDR", "custom:6379")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, "custom:6379", cfg.Redis.Addr)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("PIPEDAG_BUILDER_PARALLELISM", "many")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PIPEDAG_BUILDER_PARALLELISM")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("PIPEDAG_BUILDER_PARALLELISM", "-1")

	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/pipedag.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, "dot", cfg.Render.Format)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("builder:\n  name: [broken\n"), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "negative parallelism",
			mutate:  func(c *Config) { c.Builder.Parallelism = -2 },
			wantErr: "builder.parallelism",
		},
		{
			name:    "unknown render format",
			mutate:  func(c *Config) { c.Render.Format = "svg" },
			wantErr: "render.format",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.Redis.DefaultTTL = -time.Second },
			wantErr: "redis.default_ttl",
		},
		{
			name:    "sample rate out of range",
			mutate:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "telemetry.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pipedag.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("builder:\n  name: ok\n"), 0644))
	assert.Equal(t, "ok", MustLoad(configPath).Builder.Name)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("builder: [\n"), 0644))
	assert.Panics(t, func() { MustLoad(bad) })
}
