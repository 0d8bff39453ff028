// =============================================================================
// pipedag 主入口
// =============================================================================
// 流水线定义的校验、渲染、排序与 Redis 存取工具
//
// 使用方法:
//
//	pipedag validate -f pipeline.yaml          # 校验定义
//	pipedag render -f pipeline.yaml -format mermaid
//	pipedag order -f pipeline.yaml -layers     # 输出拓扑顺序
//	pipedag push -f pipeline.yaml              # 保存到 Redis
//	pipedag pull -name etl -o etl.yaml         # 从 Redis 读取
//	pipedag list                               # 列出已保存定义
//	pipedag version                            # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/pipedag/config"
	"github.com/BaSui01/pipedag/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "validate":
		return runCommand(cmd, rest, stdout, stderr, cmdValidate)
	case "render":
		return runCommand(cmd, rest, stdout, stderr, cmdRender)
	case "order":
		return runCommand(cmd, rest, stdout, stderr, cmdOrder)
	case "push":
		return runCommand(cmd, rest, stdout, stderr, cmdPush)
	case "pull":
		return runCommand(cmd, rest, stdout, stderr, cmdPull)
	case "list":
		return runCommand(cmd, rest, stdout, stderr, cmdList)
	case "delete":
		return runCommand(cmd, rest, stdout, stderr, cmdDelete)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		printUsage(stderr)
		return exitUsage
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	version := Version
	if version == "dev" {
		version = telemetry.Version()
	}
	fmt.Fprintf(w, "pipedag %s\n", version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `pipedag - pipeline DAG builder

Usage:
  pipedag <command> [options]

Commands:
  validate  Check one or more pipeline definitions
  render    Render a pipeline as Graphviz DOT or Mermaid
  order     Print steps in dependency order
  push      Validate a definition and save it to Redis
  pull      Load a definition from Redis
  list      List definitions saved in Redis
  delete    Remove definitions from Redis
  version   Show version information
  help      Show this help message

Common options:
  -config <path>   Path to configuration file (YAML)

Examples:
  pipedag validate -f pipeline.yaml other.json
  pipedag render -f pipeline.yaml -format mermaid -o pipeline.mmd
  pipedag order -f pipeline.yaml -layers
  pipedag push -f pipeline.yaml -ttl 24h
  pipedag pull -name etl -o etl.yaml
  pipedag list`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
