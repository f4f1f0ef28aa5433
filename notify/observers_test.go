package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobank/bank"
	appErrors "gobank/errors"
	"gobank/logging"
	"gobank/messaging"
	"gobank/messaging/middleware"
	syncTransport "gobank/messaging/transport/sync"
	"gobank/patterns/retry"
)

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogObserver(logging.NewZerologLogger(&buf, logging.InfoLevel))

	obs.OnNotification(bank.Notification{
		Kind:      bank.KindInterestAccrued,
		AccountID: 4,
		Message:   "Interest accrued: 10",
		Amount:    decimal.NewFromInt(10),
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Interest accrued: 10", entry["message"])
	assert.Equal(t, "account.interest_accrued", entry["kind"])
	assert.Equal(t, float64(4), entry["account_id"])
	assert.Equal(t, "10", entry["amount"])
}

func startedSync(t *testing.T) *syncTransport.Transport {
	t.Helper()
	tpt := syncTransport.NewTransport()
	require.NoError(t, tpt.Start(context.Background()))
	t.Cleanup(func() { _ = tpt.Close() })
	return tpt
}

func TestForwarder_PublishesEveryNotification(t *testing.T) {
	tpt := startedSync(t)
	var received []messaging.IMessage
	collect := &messaging.NamedHandler{Name: "collect", Fn: func(ctx context.Context, m messaging.IMessage) error {
		received = append(received, m)
		return nil
	}}
	for _, k := range bank.Kinds() {
		require.NoError(t, tpt.Subscribe(k.String(), collect))
	}

	fwd := NewForwarder(tpt, ForwarderConfig{
		Source:      "main",
		Middlewares: []messaging.IMiddleware{middleware.NewTracingMiddleware()},
		Logger:      logging.NewNoopLogger(),
	})

	b := bank.New("main", bank.Config{Logger: logging.NewNoopLogger()})
	acc, err := b.Open(bank.AccountOrdinary, decimal.NewFromInt(1000), bank.ObserveAll(fwd))
	require.NoError(t, err)
	require.NoError(t, b.Deposit(decimal.NewFromInt(5), acc.ID()))
	b.AccruePeriodicInterest()
	require.NoError(t, b.Close(acc.ID()))

	require.Len(t, received, 4)
	types := make([]string, 0, len(received))
	for _, m := range received {
		types = append(types, m.GetType())
		assert.Equal(t, "main", m.GetMetadata()[MetadataSource])
		assert.Equal(t, m.GetID(), m.GetMetadata()[middleware.KeyCorrelationID])
	}
	assert.Equal(t, []string{"account.opened", "account.deposited", "account.interest_accrued", "account.closed"}, types)

	interest, err := FromMessage(received[2])
	require.NoError(t, err)
	assert.True(t, interest.Amount.Equal(decimal.RequireFromString("10.05")))

	assert.Equal(t, int64(4), fwd.Forwarded())
	assert.Equal(t, int64(0), fwd.Failures())
}

func TestForwarder_HandlerFailureIsNotRepublished(t *testing.T) {
	tpt := startedSync(t)
	var healthy, failing int
	require.NoError(t, tpt.Subscribe("account.deposited", &messaging.NamedHandler{Name: "ok", Fn: func(context.Context, messaging.IMessage) error {
		healthy++
		return nil
	}}))
	require.NoError(t, tpt.Subscribe("account.deposited", &messaging.NamedHandler{Name: "down", Fn: func(context.Context, messaging.IMessage) error {
		failing++
		return errors.New("downstream unavailable")
	}}))

	fwd := NewForwarder(tpt, ForwarderConfig{
		Retry:  retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 5 * time.Millisecond},
		Logger: logging.NewNoopLogger(),
	})

	b := bank.New("main", bank.Config{Logger: logging.NewNoopLogger()})
	acc, err := b.Open(bank.AccountOrdinary, decimal.NewFromInt(1), bank.Observers{Deposited: []bank.Observer{fwd}})
	require.NoError(t, err)

	require.NoError(t, b.Deposit(decimal.NewFromInt(2), acc.ID()))

	assert.Equal(t, 1, healthy, "delivered handlers must not see the message again")
	assert.Equal(t, 1, failing)
	assert.Equal(t, int64(1), fwd.Failures())
	assert.Equal(t, int64(0), fwd.Forwarded())
	assert.True(t, acc.CurrentSum().Equal(decimal.NewFromInt(3)))
}

// flakyTransport 前 failures 次发布在投递前失败
type flakyTransport struct {
	*syncTransport.Transport
	failures int
	attempts int
}

func (f *flakyTransport) Publish(ctx context.Context, msg messaging.IMessage) error {
	f.attempts++
	if f.attempts <= f.failures {
		return appErrors.NewError(appErrors.ErrCodeQueue, "connection reset")
	}
	return f.Transport.Publish(ctx, msg)
}

func TestForwarder_RetriesTransportFailures(t *testing.T) {
	tpt := &flakyTransport{Transport: startedSync(t), failures: 2}
	var received int
	require.NoError(t, tpt.Subscribe("account.deposited", &messaging.NamedHandler{Name: "collect", Fn: func(context.Context, messaging.IMessage) error {
		received++
		return nil
	}}))

	fwd := NewForwarder(tpt, ForwarderConfig{
		Retry:  retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 5 * time.Millisecond},
		Logger: logging.NewNoopLogger(),
	})
	fwd.OnNotification(sample())

	assert.Equal(t, 3, tpt.attempts)
	assert.Equal(t, 1, received)
	assert.Equal(t, int64(1), fwd.Forwarded())
	assert.Equal(t, int64(0), fwd.Failures())
}

func TestRetryTransportFailures(t *testing.T) {
	assert.True(t, RetryTransportFailures(appErrors.NewError(appErrors.ErrCodeQueue, "nats: timeout")))
	assert.True(t, RetryTransportFailures(errors.New("plain")))
	assert.False(t, RetryTransportFailures(appErrors.WrapError(errors.New("boom"), appErrors.ErrCodeHandler, "handling")))
}

func TestForwarder_StoppedTransport(t *testing.T) {
	fwd := NewForwarder(syncTransport.NewTransport(), ForwarderConfig{
		Retry:  retry.Config{MaxAttempts: 1},
		Logger: logging.NewNoopLogger(),
	})

	fwd.OnNotification(sample())
	assert.Equal(t, int64(1), fwd.Failures())
}
