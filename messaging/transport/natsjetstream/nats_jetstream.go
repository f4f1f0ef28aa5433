// Package natsjetstream 基于 NATS JetStream 的消息传输
package natsjetstream

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	appErrors "gobank/errors"
	"gobank/logging"
	"gobank/messaging"
)

// Config JetStream 传输配置
type Config struct {
	URL  string
	Conn *nats.Conn

	// Stream 流名称，默认 "GOBANK"，覆盖 SubjectPrefix 下的全部主题
	Stream        string
	SubjectPrefix string
	DurablePrefix string
	AckWait       time.Duration
	MaxAckPending int

	// Retention limits|workqueue|interest，默认 limits，通知留存以便审计回放
	Retention         string
	MaxBytes          int64
	MaxAge            time.Duration
	Replicas          int
	MaxMsgsPerSubject int64

	Logger logging.Logger
}

// Transport 以 JetStream 实现 messaging.Transport
type Transport struct {
	cfg      Config
	logger   logging.Logger
	conn     *nats.Conn
	js       nats.JetStreamContext
	ownsConn bool

	handlers map[string][]messaging.IMessageHandler
	subs     map[string]*nats.Subscription

	mu        sync.RWMutex
	running   bool
	published atomic.Int64
}

// NewTransport 创建 JetStream 传输，连接在 Start 时建立
func NewTransport(cfg Config) *Transport {
	if cfg.Stream == "" {
		cfg.Stream = "GOBANK"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "bank."
	}
	if cfg.DurablePrefix == "" {
		cfg.DurablePrefix = "gobank-"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxAckPending <= 0 {
		cfg.MaxAckPending = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "transport.nats"))
	}
	return &Transport{
		cfg:      cfg,
		logger:   cfg.Logger,
		handlers: make(map[string][]messaging.IMessageHandler),
		subs:     make(map[string]*nats.Subscription),
	}
}

// Publish 发布到 前缀+类型 主题，消息 id 作为 JetStream 去重 id
func (t *Transport) Publish(ctx context.Context, message messaging.IMessage) error {
	t.mu.RLock()
	js := t.js
	running := t.running
	t.mu.RUnlock()
	if !running || js == nil {
		return appErrors.NewError(appErrors.ErrCodeQueue, "nats transport not running")
	}

	data, err := marshalMessage(message)
	if err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "encode message")
	}
	subject := t.subjectName(message.GetType())
	if _, err := js.Publish(subject, data, nats.MsgId(message.GetID()), nats.Context(ctx)); err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "publish "+subject)
	}
	t.published.Add(1)
	return nil
}

func (t *Transport) PublishAll(ctx context.Context, messages []messaging.IMessage) error {
	for _, msg := range messages {
		if err := t.Publish(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) Subscribe(messageType string, handler messaging.IMessageHandler) error {
	if handler == nil {
		return appErrors.NewError(appErrors.ErrCodeInvalidInput, "handler cannot be nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[messageType] = append(t.handlers[messageType], handler)
	if t.running {
		return t.subscribeLocked(messageType)
	}
	return nil
}

// Unsubscribe 最后一个处理器移除后排空对应订阅
func (t *Transport) Unsubscribe(messageType string, handler messaging.IMessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	handlers := t.handlers[messageType]
	if i := slices.Index(handlers, handler); i >= 0 {
		t.handlers[messageType] = slices.Delete(handlers, i, i+1)
	}
	if len(t.handlers[messageType]) == 0 {
		if sub, ok := t.subs[messageType]; ok {
			_ = sub.Drain()
			delete(t.subs, messageType)
		}
	}
	return nil
}

func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return appErrors.NewError(appErrors.ErrCodeConflict, "nats transport already running")
	}
	if err := t.ensureConnection(); err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "connect nats")
	}
	if err := t.ensureStream(); err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "ensure stream "+t.cfg.Stream)
	}
	for mt := range t.handlers {
		if err := t.subscribeLocked(mt); err != nil {
			return err
		}
	}
	t.running = true
	return nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	for mt, sub := range t.subs {
		_ = sub.Drain()
		delete(t.subs, mt)
	}
	if t.ownsConn && t.conn != nil {
		t.conn.Close()
	}
	t.conn = nil
	t.js = nil
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

func (t *Transport) ensureConnection() error {
	if t.conn != nil && t.js != nil {
		return nil
	}
	if t.cfg.Conn != nil {
		t.conn = t.cfg.Conn
	} else {
		url := t.cfg.URL
		if url == "" {
			url = nats.DefaultURL
		}
		conn, err := nats.Connect(url, nats.Name("gobank"))
		if err != nil {
			return err
		}
		t.conn = conn
		t.ownsConn = true
	}
	js, err := t.conn.JetStream()
	if err != nil {
		return err
	}
	t.js = js
	return nil
}

func (t *Transport) ensureStream() error {
	_, err := t.js.StreamInfo(t.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) && !strings.Contains(err.Error(), "stream not found") {
		return err
	}
	_, err = t.js.AddStream(t.streamConfig())
	return err
}

func (t *Transport) streamConfig() *nats.StreamConfig {
	retention := nats.LimitsPolicy
	switch strings.ToLower(t.cfg.Retention) {
	case "workqueue":
		retention = nats.WorkQueuePolicy
	case "interest":
		retention = nats.InterestPolicy
	}
	sc := &nats.StreamConfig{
		Name:              t.cfg.Stream,
		Subjects:          []string{t.cfg.SubjectPrefix + ">"},
		Retention:         retention,
		MaxMsgsPerSubject: -1,
		MaxAge:            t.cfg.MaxAge,
	}
	if t.cfg.MaxMsgsPerSubject != 0 {
		sc.MaxMsgsPerSubject = t.cfg.MaxMsgsPerSubject
	}
	if t.cfg.MaxBytes > 0 {
		sc.MaxBytes = t.cfg.MaxBytes
	}
	if t.cfg.Replicas > 0 {
		sc.Replicas = t.cfg.Replicas
	}
	return sc
}

func (t *Transport) subscribeLocked(messageType string) error {
	if _, exists := t.subs[messageType]; exists {
		return nil
	}
	subject := t.subjectName(messageType)
	durable := t.durableName(messageType)
	sub, err := t.js.QueueSubscribe(subject, durable, t.handleMessage(messageType),
		nats.ManualAck(),
		nats.Durable(durable),
		nats.AckWait(t.cfg.AckWait),
		nats.MaxAckPending(t.cfg.MaxAckPending))
	if err != nil {
		return appErrors.WrapError(err, appErrors.ErrCodeQueue, "subscribe "+subject)
	}
	t.subs[messageType] = sub
	return nil
}

func (t *Transport) handleMessage(defaultType string) nats.MsgHandler {
	return func(msg *nats.Msg) {
		ctx := context.Background()
		decoded, err := unmarshalMessage(msg.Data)
		if err != nil {
			t.logger.Warn(ctx, "decode nats message failed", logging.String("subject", msg.Subject), logging.Error(err))
			_ = msg.Ack()
			return
		}
		if decoded.Type == "" {
			decoded.Type = defaultType
		}
		t.dispatch(ctx, decoded)
		if err := msg.Ack(); err != nil {
			t.logger.Warn(ctx, "nats ack failed", logging.Error(err))
		}
	}
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

// subjectName "*" 映射为前缀下的全部主题
func (t *Transport) subjectName(messageType string) string {
	if messageType == "*" {
		return t.cfg.SubjectPrefix + ">"
	}
	return t.cfg.SubjectPrefix + messageType
}

// durableName 持久消费者名不能包含 . * >
func (t *Transport) durableName(messageType string) string {
	r := strings.NewReplacer(".", "_", "*", "all", ">", "all")
	return t.cfg.DurablePrefix + r.Replace(messageType)
}
