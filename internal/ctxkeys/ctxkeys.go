// Package ctxkeys holds the context keys shared across pipedag packages.
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const runIDKey contextKey = "run_id"

// WithRunID 设置 RunID，标识一次命令行调用
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取 RunID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
