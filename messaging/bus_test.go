package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	published   []IMessage
	batch       [][]IMessage
	subscribed  map[string]int
	shouldError error
	order       *[]string
}

func newMockTransport() *mockTransport {
	return &mockTransport{subscribed: make(map[string]int)}
}

func (m *mockTransport) Publish(ctx context.Context, message IMessage) error {
	if m.order != nil {
		*m.order = append(*m.order, "transport")
	}
	m.published = append(m.published, message)
	return m.shouldError
}

func (m *mockTransport) PublishAll(ctx context.Context, messages []IMessage) error {
	m.batch = append(m.batch, messages)
	return m.shouldError
}

func (m *mockTransport) Subscribe(messageType string, handler IMessageHandler) error {
	m.subscribed[messageType]++
	return nil
}

func (m *mockTransport) Unsubscribe(messageType string, handler IMessageHandler) error { return nil }
func (m *mockTransport) Start(ctx context.Context) error                              { return nil }
func (m *mockTransport) Close() error                                                 { return nil }
func (m *mockTransport) Stats() TransportStats                                        { return TransportStats{} }

type recordingMiddleware struct {
	name  string
	order *[]string
	err   error
}

func (mw recordingMiddleware) Handle(ctx context.Context, message IMessage, next HandlerFunc) error {
	*mw.order = append(*mw.order, mw.name)
	if mw.err != nil {
		return mw.err
	}
	return next(ctx, message)
}

func (mw recordingMiddleware) Name() string { return mw.name }

func TestMessageBus_PublishWithMiddleware(t *testing.T) {
	order := make([]string, 0, 3)
	transport := newMockTransport()
	transport.order = &order

	bus := NewMessageBus(transport,
		recordingMiddleware{name: "outer", order: &order},
		recordingMiddleware{name: "inner", order: &order},
	)

	msg := NewMessage("m-1", "account.deposited", nil)
	require.NoError(t, bus.Publish(context.Background(), msg))

	assert.Equal(t, []string{"outer", "inner", "transport"}, order)
	require.Len(t, transport.published, 1)
	assert.Same(t, msg, transport.published[0])
}

func TestMessageBus_MiddlewareErrorStopsChain(t *testing.T) {
	order := make([]string, 0, 2)
	transport := newMockTransport()
	transport.order = &order
	boom := errors.New("rejected")

	bus := NewMessageBus(transport, recordingMiddleware{name: "guard", order: &order, err: boom})

	err := bus.Publish(context.Background(), NewMessage("m-1", "account.opened", nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"guard"}, order)
	assert.Empty(t, transport.published)
}

func TestMessageBus_PublishAll(t *testing.T) {
	order := make([]string, 0, 4)
	transport := newMockTransport()
	bus := NewMessageBus(transport, recordingMiddleware{name: "mw", order: &order})

	msgs := []IMessage{NewMessage("a", "t", nil), NewMessage("b", "t", nil)}
	require.NoError(t, bus.PublishAll(context.Background(), msgs))
	require.NoError(t, bus.PublishAll(context.Background(), nil))

	assert.Equal(t, []string{"mw", "mw"}, order)
	require.Len(t, transport.batch, 1)
	assert.Len(t, transport.batch[0], 2)

	transport.shouldError = errors.New("down")
	assert.Error(t, bus.PublishAll(context.Background(), msgs))
}

func TestMessageBus_SubscribeDelegates(t *testing.T) {
	transport := newMockTransport()
	bus := NewMessageBus(transport)
	bus.Use(nil)

	h := &NamedHandler{Name: "noop", Fn: func(context.Context, IMessage) error { return nil }}
	require.NoError(t, bus.Subscribe("account.closed", h))
	assert.Equal(t, 1, transport.subscribed["account.closed"])
	assert.Equal(t, "noop", h.Type())
}

func TestMessage_Metadata(t *testing.T) {
	m := &Message{ID: "1"}
	m.SetMetadata("source", "main")
	assert.Equal(t, "main", m.GetMetadata()["source"])
	assert.False(t, NewMessage("2", "t", 1).GetTimestamp().IsZero())
}
