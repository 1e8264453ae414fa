// Package send contains MessageSender implementations for SQS queues and SNS
// topics. Both encode message headers as provider message attributes and
// stamp outgoing messages with a uuid id header when the caller did not set
// one.
package send

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"

	"github.com/tinexw/sqslistener"
)

// QueueSender publishes messages to SQS queues, resolving logical destination
// names through a DestinationResolver.
type QueueSender struct {
	client   sqslistener.SQSAPI
	resolver sqslistener.DestinationResolver

	// Delay postpones delivery of every sent message. Optional.
	Delay time.Duration
}

func NewQueueSender(client sqslistener.SQSAPI, resolver sqslistener.DestinationResolver) *QueueSender {
	if resolver == nil {
		resolver = sqslistener.NewCachingResolver(&sqslistener.DynamicResolver{Client: client})
	}
	return &QueueSender{client: client, resolver: resolver}
}

// Send publishes msg to the named queue.
func (s *QueueSender) Send(ctx context.Context, destination string, msg sqslistener.Message) error {
	url, err := s.resolver.ResolveDestination(ctx, destination)
	if err != nil {
		return err
	}

	attrs, err := sqslistener.EncodeAttributes(withID(msg.Headers))
	if err != nil {
		return fmt.Errorf("send to %q: %w", destination, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(url),
		MessageBody:       aws.String(msg.Body),
		MessageAttributes: attrs,
	}
	if s.Delay > 0 {
		input.DelaySeconds = int32(s.Delay / time.Second)
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send to %q: %w", destination, err)
	}
	return nil
}

// withID copies headers, adding a uuid id header when absent.
func withID(headers map[string]any) map[string]any {
	out := make(map[string]any, len(headers)+1)
	for k, v := range headers {
		out[k] = v
	}
	if _, ok := out[sqslistener.HeaderID]; !ok {
		out[sqslistener.HeaderID] = uuid.NewString()
	}
	return out
}
