// Copyright (c) pipedag Authors.
// Licensed under the MIT License.

/*
Package main 提供 pipedag 命令行工具入口。

# 概述

cmd/pipedag 读取 YAML 或 JSON 格式的流水线定义，通过 workflow.DAGBuilder
构建并校验依赖图，再按需渲染、排序或存入 Redis。所有子命令共享
-config 参数，配置按 默认值 → YAML → PIPEDAG_* 环境变量 叠加。

# 子命令

  - validate：并发校验一个或多个定义文件（errgroup 限流）
  - render：输出 Graphviz DOT 或 Mermaid
  - order：按依赖顺序输出步骤，-layers 按层分组
  - push / pull / list / delete：Redis 定义存储
  - version：版本信息，通过 ldflags 注入 Version、BuildTime、GitCommit

# 可观测性

构建事件由 metrics.Collector 记录，进程退出前写入
metrics.textfile_path；启用遥测时存储操作会产生 OpenTelemetry span。
*/
package main
