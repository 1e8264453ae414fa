package sqslistener_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinexw/sqslistener"
)

func TestDynamicResolverResolvesQueueNames(t *testing.T) {
	r := &sqslistener.DynamicResolver{Client: newFakeSQS(0)}

	url, err := r.ResolveDestination(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, queueURL("orders"), url)
}

func TestDynamicResolverPassesURLsThrough(t *testing.T) {
	r := &sqslistener.DynamicResolver{Client: newFakeSQS(0)}

	url, err := r.ResolveDestination(context.Background(), "https://sqs.us-east-1.amazonaws.com/123/orders")
	require.NoError(t, err)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/orders", url)
}

func TestDynamicResolverFailsOnMissingQueue(t *testing.T) {
	r := &sqslistener.DynamicResolver{Client: newFakeSQS(0)}

	_, err := r.ResolveDestination(context.Background(), "missing-orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-orders")
}

func TestDynamicResolverAutoCreatesMissingQueues(t *testing.T) {
	r := &sqslistener.DynamicResolver{Client: newFakeSQS(0), AutoCreate: true}

	url, err := r.ResolveDestination(context.Background(), "missing-orders")
	require.NoError(t, err)
	assert.Equal(t, queueURL("missing-orders"), url)
}

// countingResolver counts resolutions for the caching test.
type countingResolver struct {
	calls atomic.Int64
	err   error
}

func (r *countingResolver) ResolveDestination(_ context.Context, name string) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	return queueURL(name), nil
}

func TestCachingResolverResolvesEachNameOnce(t *testing.T) {
	inner := &countingResolver{}
	r := sqslistener.NewCachingResolver(inner)

	for i := 0; i < 3; i++ {
		url, err := r.ResolveDestination(context.Background(), "orders")
		require.NoError(t, err)
		assert.Equal(t, queueURL("orders"), url)
	}
	url, err := r.ResolveDestination(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, queueURL("payments"), url)

	assert.Equal(t, int64(2), inner.calls.Load())
}

func TestCachingResolverDoesNotCacheFailures(t *testing.T) {
	inner := &countingResolver{err: errors.New("unavailable")}
	r := sqslistener.NewCachingResolver(inner)

	_, err := r.ResolveDestination(context.Background(), "orders")
	require.Error(t, err)

	inner.err = nil
	url, err := r.ResolveDestination(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, queueURL("orders"), url)
	assert.Equal(t, int64(2), inner.calls.Load())
}
