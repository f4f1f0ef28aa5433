package notify

import (
	"context"
	"sync/atomic"
	"time"

	"gobank/bank"
	appErrors "gobank/errors"
	"gobank/logging"
	"gobank/messaging"
	"gobank/patterns/retry"
)

// ForwarderConfig 转发配置
type ForwarderConfig struct {
	// Source 写入消息元数据的来源名，通常是银行名
	Source string
	// Timeout 单条通知的发布时限（含重试），默认 2s
	Timeout time.Duration
	// Retry 零值时使用 retry.DefaultConfig()；Retryable 为 nil 时使用 RetryTransportFailures
	Retry retry.Config
	// Middlewares 发布前依次执行
	Middlewares []messaging.IMiddleware

	Logger logging.Logger
}

// Forwarder 把通知作为消息发布到任意 messaging.Transport
//
// 账户操作不会因发布失败而中断：失败只记录日志并计数。
type Forwarder struct {
	bus       *messaging.MessageBus
	cfg       ForwarderConfig
	logger    logging.Logger
	forwarded atomic.Int64
	failures  atomic.Int64
}

// NewForwarder 创建转发器，transport 需已 Start
func NewForwarder(transport messaging.Transport, cfg ForwarderConfig) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		retryable := cfg.Retry.Retryable
		cfg.Retry = retry.DefaultConfig()
		cfg.Retry.Retryable = retryable
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = RetryTransportFailures
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "notify.forwarder"))
	}
	return &Forwarder{
		bus:    messaging.NewMessageBus(transport, cfg.Middlewares...),
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// RetryTransportFailures 只重试传输层失败
//
// 处理器错误说明消息已经送达，重发会让其他处理器重复收到。
func RetryTransportFailures(err error) bool {
	return !appErrors.IsErrorCode(err, appErrors.ErrCodeHandler)
}

func (f *Forwarder) OnNotification(n bank.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.Timeout)
	defer cancel()

	msg := ToMessage(n, f.cfg.Source)
	err := retry.DoWithInfo(ctx, func(ctx context.Context, attempt int) error {
		err := f.bus.Publish(ctx, msg)
		if err != nil {
			f.logger.Debug(ctx, "publish attempt failed",
				logging.String("message_id", msg.ID),
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
		}
		return err
	}, f.cfg.Retry)
	if err != nil {
		f.failures.Add(1)
		f.logger.Error(ctx, "forward notification failed",
			logging.String("message_id", msg.ID),
			logging.Stringer("kind", n.Kind),
			logging.Int64("account_id", n.AccountID),
			logging.Error(err),
		)
		return
	}
	f.forwarded.Add(1)
}

// Forwarded 成功发布的通知数
func (f *Forwarder) Forwarded() int64 { return f.forwarded.Load() }

// Failures 重试耗尽仍未发布的通知数
func (f *Forwarder) Failures() int64 { return f.failures.Load() }
