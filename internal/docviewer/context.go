package docviewer

import "context"

type requestIDKey struct{}

// WithRequestID 将请求 ID 写入 ctx，打开流程的日志会带上该字段。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom 读取 WithRequestID 写入的请求 ID。
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
