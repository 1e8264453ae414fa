package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tinexw/sqslistener"
)

// HeaderCarrier adapts decoded message headers to the open telemetry
// TextMapCarrier interface so a trace injected by the sender can be
// continued on the consuming side.
type HeaderCarrier struct {
	headers map[string]any
}

func NewHeaderCarrier(headers map[string]any) *HeaderCarrier {
	return &HeaderCarrier{headers: headers}
}

func (c *HeaderCarrier) Get(key string) string {
	if v, ok := c.headers[key].(string); ok {
		return v
	}
	return ""
}

func (c *HeaderCarrier) Set(key string, value string) {
	if c.headers == nil {
		c.headers = make(map[string]any)
	}
	c.headers[key] = value
}

func (c *HeaderCarrier) Keys() (keys []string) {
	for key := range c.headers {
		keys = append(keys, key)
	}
	return
}

// Tracing starts a span per handled message, extracting the parent trace
// context from the message headers when the sender injected one.
func Tracing(tracer trace.Tracer) Decorator {
	return func(next sqslistener.HandlerFunc) sqslistener.HandlerFunc {
		return func(ctx context.Context, msg sqslistener.Message) error {
			ctx = otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(msg.Headers))
			ctx, span := tracer.Start(ctx, "handle "+msg.Queue,
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(
					attribute.String("messaging.destination.name", msg.Queue),
					attribute.String("messaging.message.id", msg.ID),
				),
			)
			defer span.End()

			err := next(ctx, msg)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		}
	}
}
