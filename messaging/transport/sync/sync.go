// Package sync 同步的进程内消息传输
package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	appErrors "gobank/errors"
	"gobank/messaging"
)

// Transport Publish 在调用方 goroutine 上依次执行全部匹配的处理器
type Transport struct {
	handlers  map[string][]messaging.IMessageHandler
	mutex     sync.RWMutex
	running   bool
	published atomic.Int64
}

// NewTransport 创建同步传输
func NewTransport() *Transport {
	return &Transport{
		handlers: make(map[string][]messaging.IMessageHandler),
	}
}

// Publish 同步发布，无订阅者不是错误
//
// 处理器错误汇总为 HANDLER_ERROR 返回，此时消息已交给全部处理器，
// 重新发布会让成功的处理器再收到一次。
func (t *Transport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mutex.RLock()
	if !t.running {
		t.mutex.RUnlock()
		return appErrors.NewError(appErrors.ErrCodeQueue, "sync transport is not running")
	}
	handlers := slices.Clone(t.handlers[message.GetType()])
	t.mutex.RUnlock()

	t.published.Add(1)

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return appErrors.WrapError(errors.Join(errs...), appErrors.ErrCodeHandler,
			fmt.Sprintf("message handling completed with %d errors", len(errs)))
	}
	return nil
}

// PublishAll 逐条发布，遇错即停
func (t *Transport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, message := range messages {
		if err := t.Publish(ctx, message); err != nil {
			return fmt.Errorf("publish message %s: %w", message.GetID(), err)
		}
	}
	return nil
}

func (t *Transport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return appErrors.NewError(appErrors.ErrCodeInvalidInput, "handler cannot be nil")
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	return nil
}

func (t *Transport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	handlers, ok := t.handlers[messageType]
	if !ok {
		return appErrors.NewError(appErrors.ErrCodeNotFound, "no handlers for message type "+messageType)
	}
	i := slices.Index(handlers, handler)
	if i < 0 {
		return appErrors.NewError(appErrors.ErrCodeNotFound, "handler not found for message type "+messageType)
	}
	t.handlers[messageType] = slices.Delete(handlers, i, i+1)
	return nil
}

func (t *Transport) Start(ctx context.Context) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.running {
		return appErrors.NewError(appErrors.ErrCodeConflict, "sync transport is already running")
	}
	t.running = true
	return nil
}

func (t *Transport) Close() error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.running = false
	return nil
}

func (t *Transport) Stats() messaging.TransportStats {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	handlerCount := 0
	messageTypes := make([]string, 0, len(t.handlers))
	for mt, h := range t.handlers {
		messageTypes = append(messageTypes, mt)
		handlerCount += len(h)
	}
	slices.Sort(messageTypes)

	return messaging.TransportStats{
		Running:      t.running,
		HandlerCount: handlerCount,
		MessageTypes: messageTypes,
		Published:    t.published.Load(),
	}
}
