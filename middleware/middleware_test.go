package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tinexw/sqslistener"
	"github.com/tinexw/sqslistener/middleware"
)

func TestApplyWrapsOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) middleware.Decorator {
		return func(next sqslistener.HandlerFunc) sqslistener.HandlerFunc {
			return func(ctx context.Context, msg sqslistener.Message) error {
				order = append(order, name)
				return next(ctx, msg)
			}
		}
	}

	fn := middleware.Apply(func(context.Context, sqslistener.Message) error {
		order = append(order, "handler")
		return nil
	}, tag("first"), tag("second"))

	require.NoError(t, fn(context.Background(), sqslistener.Message{}))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestLoggingPassesErrorsThrough(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	boom := errors.New("boom")
	fn := middleware.Apply(func(context.Context, sqslistener.Message) error {
		return boom
	}, middleware.Logging(logger))

	err := fn(context.Background(), sqslistener.Message{Queue: "orders", ID: "m-1"})
	require.ErrorIs(t, err, boom)

	entries := logs.FilterMessage("message handling failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "orders", entries[0].ContextMap()["queue"])
}

func TestLoggingLogsSuccessAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	fn := middleware.Apply(func(context.Context, sqslistener.Message) error {
		return nil
	}, middleware.Logging(logger))

	require.NoError(t, fn(context.Background(), sqslistener.Message{Queue: "orders", ID: "m-1"}))
	assert.Len(t, logs.FilterMessage("message handled").All(), 1)
}

func TestTracingPassesErrorsThrough(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	boom := errors.New("boom")
	fn := middleware.Apply(func(ctx context.Context, msg sqslistener.Message) error {
		return boom
	}, middleware.Tracing(tracer))

	err := fn(context.Background(), sqslistener.Message{
		Queue:   "orders",
		ID:      "m-1",
		Headers: map[string]any{"traceparent": "00-0123456789abcdef0123456789abcdef-0123456789abcdef-01"},
	})
	require.ErrorIs(t, err, boom)
}

func TestHeaderCarrier(t *testing.T) {
	c := middleware.NewHeaderCarrier(map[string]any{
		"traceparent": "value",
		"count":       3,
	})

	assert.Equal(t, "value", c.Get("traceparent"))
	assert.Empty(t, c.Get("count"), "non-string headers are not trace headers")
	assert.Empty(t, c.Get("absent"))

	c.Set("tracestate", "vendor=1")
	assert.Equal(t, "vendor=1", c.Get("tracestate"))
	assert.ElementsMatch(t, []string{"traceparent", "count", "tracestate"}, c.Keys())
}

func TestHeaderCarrierSetOnNilMap(t *testing.T) {
	c := middleware.NewHeaderCarrier(nil)
	c.Set("traceparent", "value")
	assert.Equal(t, "value", c.Get("traceparent"))
}
