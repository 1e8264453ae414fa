package sqslistener

import (
	"context"
)

// Reserved header names. They mirror the message attributes the senders in
// the send package write, so a message published by this library round-trips
// its metadata through SQS.
const (
	HeaderContentType = "contentType"
	HeaderID          = "id"
	HeaderSubject     = "subject"
)

// Message is a single received (or to-be-sent) queue message. For received
// messages ID, ReceiptHandle, Queue and QueueURL are populated by the
// container; for outgoing messages only Body and Headers matter.
type Message struct {
	// ID is the provider-assigned message id.
	ID string
	// ReceiptHandle is the lease token for this particular receive. It is
	// required to acknowledge (delete) the message and is valid until the
	// visibility timeout expires.
	ReceiptHandle string
	// Body is the raw message payload.
	Body string
	// Queue is the logical name of the queue the message arrived on.
	Queue string
	// QueueURL is the resolved endpoint of that queue.
	QueueURL string
	// Headers holds the decoded message attributes plus any values set by
	// the sender.
	Headers map[string]any
}

// ContentType returns the content type header, or "" when unset.
func (m Message) ContentType() string {
	if ct, ok := m.Headers[HeaderContentType].(string); ok {
		return ct
	}
	return ""
}

// HandlerFunc handles a single received message. A nil return acknowledges
// the message; a non-nil return leaves it in flight so the queue redelivers
// it once the visibility timeout expires.
type HandlerFunc func(ctx context.Context, msg Message) error

// MessageHandler routes received messages. CanHandle is consulted once per
// queue when the container starts so that a queue without a handler fails
// fast instead of dropping messages at runtime.
type MessageHandler interface {
	CanHandle(queue string) bool
	HandleMessage(ctx context.Context, msg Message) error
}

// MessageSender publishes a message to a named destination. Implementations
// live in the send package.
type MessageSender interface {
	Send(ctx context.Context, destination string, msg Message) error
}
