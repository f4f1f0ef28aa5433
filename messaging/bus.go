package messaging

import (
	"context"
	"fmt"
	"sync"
)

// HandlerFunc 中间件链中的基本执行单元
type HandlerFunc func(ctx context.Context, message IMessage) error

// IMiddleware 发布链中间件
type IMiddleware interface {
	Handle(ctx context.Context, message IMessage, next HandlerFunc) error
	Name() string
}

// Publisher 只负责发布的一侧
type Publisher interface {
	Publish(ctx context.Context, message IMessage) error
	PublishAll(ctx context.Context, messages []IMessage) error
}

// MessageBus 在 Transport 之前执行中间件链
type MessageBus struct {
	transport   Transport
	middlewares []IMiddleware
	mutex       sync.RWMutex
}

// NewMessageBus 创建消息总线
func NewMessageBus(transport Transport, middlewares ...IMiddleware) *MessageBus {
	bus := &MessageBus{transport: transport}
	for _, mw := range middlewares {
		bus.Use(mw)
	}
	return bus
}

// Use 注册中间件，按注册顺序由外到内执行
func (bus *MessageBus) Use(middleware IMiddleware) {
	if middleware == nil {
		return
	}
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.middlewares = append(bus.middlewares, middleware)
}

// Subscribe 透传给 Transport
func (bus *MessageBus) Subscribe(messageType string, handler IMessageHandler) error {
	return bus.transport.Subscribe(messageType, handler)
}

// Publish 经过中间件后交给 Transport
func (bus *MessageBus) Publish(ctx context.Context, message IMessage) error {
	return bus.chain(ctx, message, bus.transport.Publish)
}

// PublishAll 逐条执行中间件后整批交给 Transport
func (bus *MessageBus) PublishAll(ctx context.Context, messages []IMessage) error {
	if len(messages) == 0 {
		return nil
	}

	batched := make([]IMessage, 0, len(messages))
	for _, message := range messages {
		err := bus.chain(ctx, message, func(ctx context.Context, msg IMessage) error {
			batched = append(batched, msg)
			return nil
		})
		if err != nil {
			return fmt.Errorf("publish message %s: %w", message.GetID(), err)
		}
	}

	if err := bus.transport.PublishAll(ctx, batched); err != nil {
		return fmt.Errorf("publish batch (%d messages): %w", len(batched), err)
	}
	return nil
}

func (bus *MessageBus) chain(ctx context.Context, message IMessage, final HandlerFunc) error {
	bus.mutex.RLock()
	middlewares := bus.middlewares
	bus.mutex.RUnlock()

	next := final
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw := middlewares[i]
		inner := next
		next = func(ctx context.Context, msg IMessage) error {
			return mw.Handle(ctx, msg, inner)
		}
	}
	return next(ctx, message)
}
