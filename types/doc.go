// Copyright (c) pipedag Authors.
// Licensed under the MIT License.

/*
Package types 提供 pipedag 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 workflow、config、
internal/cache 以及 cmd/pipedag 提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode：结构化错误体系，携带出错步骤名与全部违规名称列表

# 主要能力

  - 按错误码匹配：errors.Is(err, &Error{Code: ...}) 只比较 Code
  - GetErrorCode 可穿透 fmt.Errorf 的 %w 包装
  - 图构建错误均为同步、不可重试错误
*/
package types
