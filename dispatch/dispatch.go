// Package dispatch maps destinations to handler functions. A Registry is
// populated at startup, validated when the listener container starts and
// read-only afterwards; there is no runtime handler discovery.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tinexw/sqslistener"
	"github.com/tinexw/sqslistener/converter"
)

var (
	// ErrDuplicateHandler is returned when two handlers are registered for
	// the same destination.
	ErrDuplicateHandler = errors.New("handler already registered for destination")
	// ErrNoSender is returned when a registration declares a reply
	// destination but the registry has no sender to publish with.
	ErrNoSender = errors.New("send-to destination configured without a message sender")
)

// Func handles one message whose payload has already been converted. A
// non-nil return value is routed to the registration's reply destination, if
// one is configured.
type Func func(ctx context.Context, payload any, msg sqslistener.Message) (any, error)

// Typed adapts a handler taking a concrete payload type. When the converter
// chain produced a value of that type it is passed through; otherwise the
// raw body is decoded as JSON into it.
func Typed[T any](fn func(ctx context.Context, payload T, msg sqslistener.Message) (any, error)) Func {
	return func(ctx context.Context, payload any, msg sqslistener.Message) (any, error) {
		if v, ok := payload.(T); ok {
			return fn(ctx, v, msg)
		}
		var v T
		if err := json.Unmarshal([]byte(msg.Body), &v); err != nil {
			return nil, fmt.Errorf("decode payload into %T: %w", v, err)
		}
		return fn(ctx, v, msg)
	}
}

type registration struct {
	pipeline sqslistener.HandlerFunc
}

// Registry implements sqslistener.MessageHandler. Register all handlers
// before starting the container; Registry is not safe for registration
// concurrent with message handling.
type Registry struct {
	chain      converter.Chain
	sender     sqslistener.MessageSender
	log        *zap.Logger
	report     func(error)
	middleware []func(sqslistener.HandlerFunc) sqslistener.HandlerFunc

	handlers map[string]registration
}

// Option customises a Registry.
type Option func(*Registry)

// WithConverters replaces the default converter chain (text, then JSON).
func WithConverters(chain converter.Chain) Option {
	return func(r *Registry) { r.chain = chain }
}

// WithSender sets the sender used to publish handler return values.
func WithSender(s sqslistener.MessageSender) Option {
	return func(r *Registry) { r.sender = s }
}

// WithLogger sets the logger, which defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithErrorReporter registers a callback for failures that do not fail the
// handled message, such as reply publishes. Wire it to the container's
// ReportError so they surface on its Errors channel.
func WithErrorReporter(report func(error)) Option {
	return func(r *Registry) { r.report = report }
}

// Use appends middleware applied to every handler registered afterwards.
// Decorators wrap in the order given, the first being outermost.
func Use(ds ...func(sqslistener.HandlerFunc) sqslistener.HandlerFunc) Option {
	return func(r *Registry) { r.middleware = append(r.middleware, ds...) }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		chain:    converter.Default(),
		log:      zap.NewNop(),
		handlers: make(map[string]registration),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HandlerOption customises a single registration.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	sendTo string
}

// SendTo routes the handler's return value to the given destination.
func SendTo(destination string) HandlerOption {
	return func(c *handlerConfig) { c.sendTo = destination }
}

// Register binds a handler to a destination. Registering a destination twice
// is an error, as is configuring a reply destination on a registry without a
// sender; both are configuration mistakes surfaced before the container
// starts.
func (r *Registry) Register(destination string, fn Func, opts ...HandlerOption) error {
	if _, ok := r.handlers[destination]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, destination)
	}

	var cfg handlerConfig
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.sendTo != "" && r.sender == nil {
		return fmt.Errorf("%w: %q", ErrNoSender, destination)
	}

	pipeline := r.pipeline(fn, cfg)
	for i := len(r.middleware) - 1; i >= 0; i-- {
		pipeline = r.middleware[i](pipeline)
	}
	r.handlers[destination] = registration{pipeline: pipeline}
	return nil
}

// MustRegister is Register, panicking on error. Intended for wiring code
// where a registration error is a programming mistake.
func (r *Registry) MustRegister(destination string, fn Func, opts ...HandlerOption) {
	if err := r.Register(destination, fn, opts...); err != nil {
		panic(err)
	}
}

// CanHandle reports whether a handler is registered for the queue. The
// container consults it at start so a queue without a handler fails fast.
func (r *Registry) CanHandle(queue string) bool {
	_, ok := r.handlers[queue]
	return ok
}

// HandleMessage converts the message payload and invokes the handler
// registered for the queue the message arrived on.
func (r *Registry) HandleMessage(ctx context.Context, msg sqslistener.Message) error {
	reg, ok := r.handlers[msg.Queue]
	if !ok {
		return fmt.Errorf("no handler registered for queue %q", msg.Queue)
	}
	return reg.pipeline(ctx, msg)
}

// pipeline builds the message-level handler: convert, invoke, route the
// return value.
func (r *Registry) pipeline(fn Func, cfg handlerConfig) sqslistener.HandlerFunc {
	return func(ctx context.Context, msg sqslistener.Message) error {
		payload, err := r.chain.Read(msg)
		if err != nil {
			return err
		}

		ret, err := fn(ctx, payload, msg)
		if err != nil {
			return err
		}
		if ret == nil || cfg.sendTo == "" {
			return nil
		}

		// A reply that cannot be published is reported but must not fail
		// the handled message: redelivering it would re-run a handler that
		// already succeeded.
		body, contentType, err := r.chain.Write(ret)
		if err != nil {
			r.log.Error("reply conversion failed",
				zap.String("queue", msg.Queue),
				zap.String("message_id", msg.ID),
				zap.String("send_to", cfg.sendTo),
				zap.Error(err),
			)
			r.reportError(fmt.Errorf("convert reply for %q: %w", cfg.sendTo, err))
			return nil
		}

		reply := sqslistener.Message{
			Body: body,
			Headers: map[string]any{
				sqslistener.HeaderContentType: contentType,
			},
		}
		if err := r.sender.Send(ctx, cfg.sendTo, reply); err != nil {
			r.log.Error("reply publish failed",
				zap.String("queue", msg.Queue),
				zap.String("message_id", msg.ID),
				zap.String("send_to", cfg.sendTo),
				zap.Error(err),
			)
			r.reportError(fmt.Errorf("publish reply to %q: %w", cfg.sendTo, err))
		}
		return nil
	}
}

func (r *Registry) reportError(err error) {
	if r.report != nil {
		r.report(err)
	}
}
