package messaging

import (
	"context"
)

// IMessageHandler 消息处理器接口
type IMessageHandler interface {
	Handle(ctx context.Context, message IMessage) error

	// Type 返回处理器类型（用于日志和调试）
	Type() string
}

// NamedHandler 以函数实现 IMessageHandler
type NamedHandler struct {
	Name string
	Fn   HandlerFunc
}

func (h *NamedHandler) Handle(ctx context.Context, message IMessage) error {
	return h.Fn(ctx, message)
}

func (h *NamedHandler) Type() string { return h.Name }
