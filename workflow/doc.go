// Copyright (c) pipedag Authors.
// Licensed under the MIT License.

/*
Package workflow 提供多分支处理流水线的 DAG 增量构建与校验引擎。

# 概述

DAGBuilder 逐个接收步骤（Step），在每次插入时校验名称、解析依赖并
保持无环不变量；Build 产出只读的 Graph 视图，交给下游执行层调度。
本包不执行步骤，也从不解释步骤的 Payload。

# 核心接口与类型

  - Step：命名的工作单元（Name + 不透明 Payload + Deps）
  - Deps / After：依赖声明：名称到可选标签的映射；After 生成列表形式
  - DAGBuilder：只追加的构建器，AddStep 失败时图保持不变
  - Graph：冻结后的只读视图，与构建器共享存储、不做拷贝
  - Renderer：渲染协作者接口（DOTRenderer、MermaidRenderer）
  - DAGDefinition：JSON / YAML 流水线定义，Compile 回放为 DAGBuilder
  - Observer：构建事件观察者（internal/metrics 提供 Prometheus 实现）

# 校验顺序

AddStep 依次检查：名称合法（ErrInvalidName）、名称唯一
（ErrDuplicateName）、依赖形状（ErrInvalidDependencyShape）、依赖已注册
（ErrUnresolvedDependency，一次列出全部缺失名称并排序），全部通过后才写入
节点与边，最后做一次无环校验（ErrCycle，失败则回滚）。

# 遍历顺序

Graph.Steps / Names 始终按插入顺序返回；由于依赖必须先于依赖方注册，
插入顺序同时也是一个拓扑序。Layers 按依赖深度分层，供并行执行器结合
Parallelism 提示使用。
*/
package workflow
