package middleware_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tinexw/sqslistener"
	"github.com/tinexw/sqslistener/middleware"
)

// visibilityRecorder implements the one SQSAPI call the extender makes.
type visibilityRecorder struct {
	sqslistener.SQSAPI
	calls atomic.Int64
	last  atomic.Value // *sqs.ChangeMessageVisibilityInput
}

func (r *visibilityRecorder) ChangeMessageVisibility(_ context.Context, params *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	r.calls.Add(1)
	r.last.Store(params)
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func TestVisibilityExtenderExtendsWhileHandlerRuns(t *testing.T) {
	client := &visibilityRecorder{}

	fn := middleware.Apply(func(ctx context.Context, msg sqslistener.Message) error {
		time.Sleep(70 * time.Millisecond)
		return nil
	}, middleware.VisibilityExtender(client, zap.NewNop(),
		middleware.ExtendEvery(20*time.Millisecond),
		middleware.ExtendBy(30*time.Second),
	))

	msg := sqslistener.Message{
		ID:            "m-1",
		Queue:         "orders",
		QueueURL:      "https://sqs.test/orders",
		ReceiptHandle: "rh-1",
	}
	require.NoError(t, fn(context.Background(), msg))

	calls := client.calls.Load()
	assert.GreaterOrEqual(t, calls, int64(2), "expected repeated extensions during the handler")

	in := client.last.Load().(*sqs.ChangeMessageVisibilityInput)
	assert.Equal(t, "https://sqs.test/orders", aws.ToString(in.QueueUrl))
	assert.Equal(t, "rh-1", aws.ToString(in.ReceiptHandle))
	assert.Equal(t, int32(30), in.VisibilityTimeout)

	// Extension stops once the handler has returned.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, calls, client.calls.Load())
}

func TestVisibilityExtenderIdleForFastHandlers(t *testing.T) {
	client := &visibilityRecorder{}

	fn := middleware.Apply(func(context.Context, sqslistener.Message) error {
		return nil
	}, middleware.VisibilityExtender(client, zap.NewNop(),
		middleware.ExtendEvery(50*time.Millisecond),
	))

	require.NoError(t, fn(context.Background(), sqslistener.Message{ID: "m-1"}))
	assert.Zero(t, client.calls.Load())
}
