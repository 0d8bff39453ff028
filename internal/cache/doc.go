// 版权所有 2024 pipedag Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的 DAG 定义存储。

# 概述

Manager 封装 go-redis 客户端，将 workflow.DAGDefinition 以 JSON 形式
保存在 KeyPrefix+名称 下。写入前与读出后都会完整校验定义，
因此存储中不会留下无法构建的图。

# 核心类型

  - Manager：定义存储，提供 Save/Load/Delete/List/Ping/Close。
  - Config：地址、密码、键前缀、默认 TTL 与连接池参数。
  - Recorder：存储事件接收者，metrics.Collector 实现了该接口。

# 主要能力

  - 并发读取合并：同名 Load 通过 singleflight 只访问一次 Redis。
  - 链路追踪：每个操作都会开启 OpenTelemetry span 并记录错误。
  - 错误语义：缺失的定义返回 ErrDefinitionNotFound，可用 IsNotFound 判断。
*/
package cache
