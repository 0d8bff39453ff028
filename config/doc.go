// Package config 提供 pipedag 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → PIPEDAG_* 环境变量 的顺序叠加，
// 覆盖构建器并行度提示、渲染格式、Redis 定义存储、日志、遥测与指标输出。
package config
