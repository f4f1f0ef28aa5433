// Package redisstreams 基于 Redis Streams 消费组的消息传输
package redisstreams

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "gobank/errors"
	"gobank/logging"
	"gobank/messaging"
)

// client 所依赖的 go-redis 命令子集，便于测试替换
type client interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	Close() error
}

// Config Redis Streams 传输配置
type Config struct {
	// Client 外部提供的客户端，为空时按 Addr 等字段自建并在 Close 时关闭
	Client   redis.UniversalClient
	Addr     string
	Username string
	Password string
	DB       int

	// StreamPrefix 流名前缀，流名为前缀 + 消息类型，默认 "bank:"
	StreamPrefix string
	GroupName    string
	ConsumerName string

	// MaxLen 大于 0 时以近似裁剪限制流长度
	MaxLen int64

	BlockTimeout   time.Duration
	ReadCount      int64
	MinReadBackoff time.Duration
	MaxReadBackoff time.Duration

	Logger logging.Logger
}

// Transport 以 Redis Streams 实现 messaging.Transport
//
// 每个消息类型对应一个流，订阅时为该流启动一个消费组读取循环。
type Transport struct {
	cfg       Config
	client    client
	ownClient bool
	logger    logging.Logger

	handlers      map[string][]messaging.IMessageHandler
	subscriptions map[string]bool

	mu        sync.RWMutex
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	published atomic.Int64
}

// NewTransport 创建 Redis Streams 传输
func NewTransport(cfg Config) (*Transport, error) {
	cfg = cfg.withDefaults()

	var cl client
	own := false
	if cfg.Client != nil {
		cl = cfg.Client
	} else {
		if cfg.Addr == "" {
			return nil, appErrors.NewError(appErrors.ErrCodeInvalidInput, "redis address not configured")
		}
		cl = redis.NewClient(&redis.Options{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, DB: cfg.DB})
		own = true
	}
	return newTransport(cfg, cl, own), nil
}

func newTransport(cfg Config, cl client, own bool) *Transport {
	return &Transport{
		cfg:           cfg,
		client:        cl,
		ownClient:     own,
		logger:        cfg.Logger,
		handlers:      make(map[string][]messaging.IMessageHandler),
		subscriptions: make(map[string]bool),
	}
}

func (c Config) withDefaults() Config {
	if c.StreamPrefix == "" {
		c.StreamPrefix = "bank:"
	}
	if c.GroupName == "" {
		c.GroupName = "gobank"
	}
	if c.ConsumerName == "" {
		c.ConsumerName = "consumer-" + uuid.NewString()
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = 5 * time.Second
	}
	if c.ReadCount <= 0 {
		c.ReadCount = 10
	}
	if c.MinReadBackoff <= 0 {
		c.MinReadBackoff = 100 * time.Millisecond
	}
	if c.MaxReadBackoff <= 0 {
		c.MaxReadBackoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger().WithFields(logging.String("component", "transport.redisstreams"))
	}
	return c
}

// Publish 将消息追加到对应的流
func (t *Transport) Publish(ctx context.Context, message messaging.IMessage) error {
	values, err := encodeMessage(message)
	if err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "encode message")
	}
	args := &redis.XAddArgs{Stream: t.streamName(message.GetType()), Values: values}
	if t.cfg.MaxLen > 0 {
		args.MaxLen = t.cfg.MaxLen
		args.Approx = true
	}
	if err := t.client.XAdd(ctx, args).Err(); err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "xadd "+args.Stream)
	}
	t.published.Add(1)
	return nil
}

// PublishAll 逐条追加，Redis Streams 不支持跨流批量写入
func (t *Transport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, msg := range messages {
		if err := t.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe 注册处理器，"*" 接收已订阅流上的所有消息
func (t *Transport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return appErrors.NewError(appErrors.ErrCodeInvalidInput, "handler cannot be nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	if t.running && messageType != "*" {
		t.startReaderLocked(messageType)
	}
	return nil
}

// Unsubscribe 移除处理器，未找到时不报错；读取循环保持运行直到 Close
func (t *Transport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	handlers := t.handlers[messageType]
	if i := slices.Index(handlers, handler); i >= 0 {
		t.handlers[messageType] = slices.Delete(handlers, i, i+1)
	}
	return nil
}

// Start 为每个已订阅的消息类型启动读取循环
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return appErrors.NewError(appErrors.ErrCodeConflict, "redis streams transport already running")
	}
	t.ctx, t.cancel = context.WithCancel(ctx)
	for mt := range t.handlers {
		if mt != "*" {
			t.startReaderLocked(mt)
		}
	}
	t.running = true
	return nil
}

// Close 停止读取循环，自建的客户端一并关闭
func (t *Transport) Close() error {
	t.mu.Lock()
	wasRunning := t.running
	t.running = false
	cancel := t.cancel
	clear(t.subscriptions)
	t.mu.Unlock()

	if wasRunning && cancel != nil {
		cancel()
		t.wg.Wait()
	}
	if t.ownClient {
		return t.client.Close()
	}
	return nil
}

func (t *Transport) Stats() messaging.TransportStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	handlerCount := 0
	types := make([]string, 0, len(t.handlers))
	for mt, hs := range t.handlers {
		handlerCount += len(hs)
		types = append(types, mt)
	}
	slices.Sort(types)
	return messaging.TransportStats{
		Running:      t.running,
		HandlerCount: handlerCount,
		MessageTypes: types,
		Published:    t.published.Load(),
	}
}

func (t *Transport) startReaderLocked(messageType string) {
	if t.subscriptions[messageType] {
		return
	}
	t.subscriptions[messageType] = true
	t.wg.Add(1)
	go t.readLoop(t.ctx, messageType)
}

func (t *Transport) readLoop(ctx context.Context, messageType string) {
	defer t.wg.Done()
	stream := t.streamName(messageType)
	if err := t.ensureGroup(ctx, stream); err != nil {
		t.logger.Warn(ctx, "ensure group failed", logging.String("stream", stream), logging.Error(err))
	}
	args := &redis.XReadGroupArgs{
		Group:    t.cfg.GroupName,
		Consumer: t.cfg.ConsumerName,
		Streams:  []string{stream, ">"},
		Count:    t.cfg.ReadCount,
		Block:    t.cfg.BlockTimeout,
	}
	backoff := t.cfg.MinReadBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := t.client.XReadGroup(ctx, args).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			t.logger.Warn(ctx, "xreadgroup failed", logging.Duration("backoff", backoff), logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, t.cfg.MaxReadBackoff)
			continue
		}
		backoff = t.cfg.MinReadBackoff
		for _, streamRes := range res {
			for _, entry := range streamRes.Messages {
				t.consume(ctx, streamRes.Stream, entry)
			}
		}
	}
}

// consume 解码并分发一条记录，解码失败的记录直接确认以免反复投递
func (t *Transport) consume(ctx context.Context, stream string, entry redis.XMessage) {
	msg, err := decodeMessage(entry)
	if err != nil {
		t.logger.Warn(ctx, "decode redis stream entry failed",
			logging.String("stream", stream), logging.String("entry_id", entry.ID), logging.Error(err))
	} else {
		t.dispatch(ctx, msg)
	}
	if ackErr := t.client.XAck(ctx, stream, t.cfg.GroupName, entry.ID).Err(); ackErr != nil {
		t.logger.Warn(ctx, "xack failed", logging.String("entry_id", entry.ID), logging.Error(ackErr))
	}
}

func (t *Transport) ensureGroup(ctx context.Context, stream string) error {
	err := t.client.XGroupCreateMkStream(ctx, stream, t.cfg.GroupName, "0").Err()
	if err == nil || strings.Contains(strings.ToUpper(err.Error()), "BUSYGROUP") {
		return nil
	}
	return err
}

func (t *Transport) dispatch(ctx context.Context, message messaging.IMessage) {
	t.mu.RLock()
	handlers := slices.Concat(t.handlers[message.GetType()], t.handlers["*"])
	t.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, message); err != nil {
			t.logger.Warn(ctx, "handler failed",
				logging.String("handler", h.Type()),
				logging.String("message_id", message.GetID()),
				logging.Error(err),
			)
		}
	}
}

func (t *Transport) streamName(messageType string) string {
	return fmt.Sprintf("%s%s", t.cfg.StreamPrefix, messageType)
}
