package middleware

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/tinexw/sqslistener"
)

const (
	defaultExtendEvery     = 25 * time.Second
	defaultExtensionPeriod = 30 * time.Second
)

// VisibilityExtender periodically extends the visibility timeout of the
// message being handled so that a long-running handler does not lose its
// lease mid-flight. Extension stops as soon as the handler returns; on
// failure the message becomes visible again after the last extension
// expires.
func VisibilityExtender(client sqslistener.SQSAPI, log *zap.Logger, opts ...VisibilityOption) Decorator {
	ve := &visibilityExtender{
		client:    client,
		log:       log,
		every:     defaultExtendEvery,
		extension: defaultExtensionPeriod,
	}
	for _, o := range opts {
		o(ve)
	}

	return func(next sqslistener.HandlerFunc) sqslistener.HandlerFunc {
		return func(ctx context.Context, msg sqslistener.Message) error {
			stop := ve.keepVisible(ctx, msg)
			defer stop()
			return next(ctx, msg)
		}
	}
}

// VisibilityOption customises a VisibilityExtender.
type VisibilityOption func(*visibilityExtender)

// ExtendEvery sets how often the extension is refreshed.
func ExtendEvery(d time.Duration) VisibilityOption {
	return func(ve *visibilityExtender) { ve.every = d }
}

// ExtendBy sets the length of each requested extension.
func ExtendBy(d time.Duration) VisibilityOption {
	return func(ve *visibilityExtender) { ve.extension = d }
}

type visibilityExtender struct {
	client    sqslistener.SQSAPI
	log       *zap.Logger
	every     time.Duration
	extension time.Duration
}

func (ve *visibilityExtender) keepVisible(ctx context.Context, msg sqslistener.Message) (stop func()) {
	ticker := time.NewTicker(ve.every)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				ve.extend(ctx, msg)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func (ve *visibilityExtender) extend(ctx context.Context, msg sqslistener.Message) {
	_, err := ve.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(msg.QueueURL),
		ReceiptHandle:     aws.String(msg.ReceiptHandle),
		VisibilityTimeout: int32(ve.extension / time.Second),
	})
	if err != nil {
		ve.log.Warn("failed to extend visibility timeout",
			zap.String("queue", msg.Queue),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return
	}
	ve.log.Debug("extended visibility timeout",
		zap.String("message_id", msg.ID),
		zap.Duration("extension", ve.extension),
	)
}
