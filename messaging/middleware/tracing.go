// Package middleware 消息发布中间件
package middleware

import (
	"context"

	"gobank/messaging"
)

const (
	KeyCorrelationID = "correlation_id"
	KeyTraceID       = "trace_id"
)

type ctxKey string

// WithCorrelationID 将关联 id 放入 Context，后续发布的消息沿用
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey(KeyCorrelationID), id)
}

// TracingMiddleware 为消息补齐 correlation_id 与 trace_id
//
// 优先沿用元数据中已有的值，其次取 Context，最后用消息 id 兜底。
type TracingMiddleware struct{}

func NewTracingMiddleware() *TracingMiddleware { return &TracingMiddleware{} }

func (m *TracingMiddleware) Name() string { return "Tracing" }

func (m *TracingMiddleware) Handle(ctx context.Context, message messaging.IMessage, next messaging.HandlerFunc) error {
	if message == nil {
		return next(ctx, message)
	}
	md := message.GetMetadata()

	if v, _ := md[KeyCorrelationID].(string); v == "" {
		if fromCtx, _ := ctx.Value(ctxKey(KeyCorrelationID)).(string); fromCtx != "" {
			md[KeyCorrelationID] = fromCtx
		} else {
			md[KeyCorrelationID] = message.GetID()
		}
	}
	if v, _ := md[KeyTraceID].(string); v == "" {
		md[KeyTraceID] = message.GetID()
	}
	return next(ctx, message)
}
