// 版权所有 2024 pipedag Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的 DAG 构建与定义存储指标采集能力。

# 概述

Collector 通过 promauto.With 将指标注册到自己的 Registry，
并实现 workflow.Observer，可直接通过 workflow.WithObserver 挂到构建器上。
命令行工具是短生命周期进程，因此指标以 textfile 格式写出，
交给 node_exporter 的 textfile collector 采集。

# 主要指标

  - steps_added_total / step_dependencies：接受的步骤数与每步依赖数分布。
  - step_rejections_total{code}：按错误码统计被拒绝的步骤。
  - builds_total{status}：Build 调用结果。
  - graph_nodes / graph_edges：最近一次构建出的图规模。
  - store_operation_duration_seconds{operation,status}、
    store_hits_total、store_misses_total：Redis 定义存储。
*/
package metrics
