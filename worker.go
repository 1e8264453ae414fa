package sqslistener

import (
	"context"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// task is one received message awaiting handling. deadline is the moment the
// message's visibility timeout expires, or zero when the queue default
// applies.
type task struct {
	msg      Message
	deadline time.Time
}

// startWorkers spawns the shared handler pool. Workers drain the work channel
// until it is closed; ctx is only cancelled once the shutdown grace period
// has expired, so stopping the container does not interrupt in-flight
// handlers.
func (c *Container) startWorkers(ctx context.Context, work <-chan task) chan struct{} {
	var wg sync.WaitGroup
	wg.Add(c.config.WorkerCount)
	for i := 0; i < c.config.WorkerCount; i++ {
		go func() {
			defer wg.Done()
			for t := range work {
				c.handle(ctx, t)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (c *Container) handle(ctx context.Context, t task) {
	hctx := ctx
	if !t.deadline.IsZero() {
		var cancel context.CancelFunc
		hctx, cancel = context.WithDeadline(ctx, t.deadline)
		defer cancel()
	}

	if err := c.handler.HandleMessage(hctx, t.msg); err != nil {
		// Not acknowledged: the queue redelivers the message after the
		// visibility timeout.
		c.log.Warn("handler failed",
			zap.String("queue", t.msg.Queue),
			zap.String("message_id", t.msg.ID),
			zap.Error(err),
		)
		return
	}

	c.acknowledge(ctx, t.msg)
}

// acknowledge deletes a handled message. It is issued at most once per
// received message; the receipt handle is not reused afterwards.
func (c *Container) acknowledge(ctx context.Context, msg Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(msg.QueueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		c.log.Warn("acknowledge failed",
			zap.String("queue", msg.Queue),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		c.reportError(err)
	}
}
