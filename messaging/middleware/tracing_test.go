package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobank/messaging"
)

func passthrough(context.Context, messaging.IMessage) error { return nil }

func TestTracing_FallsBackToMessageID(t *testing.T) {
	msg := messaging.NewMessage("m-1", "account.opened", nil)

	require.NoError(t, NewTracingMiddleware().Handle(context.Background(), msg, passthrough))

	assert.Equal(t, "m-1", msg.Metadata[KeyCorrelationID])
	assert.Equal(t, "m-1", msg.Metadata[KeyTraceID])
}

func TestTracing_UsesContextCorrelation(t *testing.T) {
	msg := messaging.NewMessage("m-2", "account.closed", nil)
	ctx := WithCorrelationID(context.Background(), "day-17")

	require.NoError(t, NewTracingMiddleware().Handle(ctx, msg, passthrough))

	assert.Equal(t, "day-17", msg.Metadata[KeyCorrelationID])
}

func TestTracing_KeepsExisting(t *testing.T) {
	msg := messaging.NewMessage("m-3", "account.closed", nil)
	msg.SetMetadata(KeyCorrelationID, "given")
	ctx := WithCorrelationID(context.Background(), "ignored")

	require.NoError(t, NewTracingMiddleware().Handle(ctx, msg, passthrough))

	assert.Equal(t, "given", msg.Metadata[KeyCorrelationID])
	assert.Equal(t, "Tracing", NewTracingMiddleware().Name())
}
