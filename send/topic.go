package send

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/tinexw/sqslistener"
)

// SNSAPI is the part of the SNS API used by TopicSender.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TopicSender publishes messages to SNS topics. The destination is the topic
// ARN. A subject header becomes the notification subject rather than a
// message attribute.
type TopicSender struct {
	client SNSAPI
}

func NewTopicSender(client SNSAPI) *TopicSender {
	return &TopicSender{client: client}
}

func (s *TopicSender) Send(ctx context.Context, destination string, msg sqslistener.Message) error {
	headers := withID(msg.Headers)

	var subject *string
	if subj, ok := headers[sqslistener.HeaderSubject].(string); ok {
		subject = aws.String(subj)
		delete(headers, sqslistener.HeaderSubject)
	}

	attrs, err := sqslistener.EncodeAttributes(headers)
	if err != nil {
		return fmt.Errorf("publish to %q: %w", destination, err)
	}

	input := &sns.PublishInput{
		TopicArn:          aws.String(destination),
		Message:           aws.String(msg.Body),
		Subject:           subject,
		MessageAttributes: toSNSAttributes(attrs),
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("publish to %q: %w", destination, err)
	}
	return nil
}

// toSNSAttributes maps the SQS attribute representation onto the SNS one;
// the wire format is identical.
func toSNSAttributes(attrs map[string]sqstypes.MessageAttributeValue) map[string]snstypes.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]snstypes.MessageAttributeValue, len(attrs))
	for name, attr := range attrs {
		out[name] = snstypes.MessageAttributeValue{
			DataType:    attr.DataType,
			StringValue: attr.StringValue,
			BinaryValue: attr.BinaryValue,
		}
	}
	return out
}
