package sqslistener

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// DestinationResolver resolves a logical destination name to a queue URL.
type DestinationResolver interface {
	ResolveDestination(ctx context.Context, name string) (string, error)
}

// DynamicResolver resolves queue names through the SQS API. Names that
// already look like queue URLs pass through unchanged. With AutoCreate set,
// a missing queue is created instead of failing, in which case it is
// configured for long polling.
type DynamicResolver struct {
	Client     SQSAPI
	AutoCreate bool
}

func (r *DynamicResolver) ResolveDestination(ctx context.Context, name string) (string, error) {
	if strings.HasPrefix(name, "https://") || strings.HasPrefix(name, "http://") {
		return name, nil
	}

	out, err := r.Client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(name),
	})
	if err == nil {
		return aws.ToString(out.QueueUrl), nil
	}

	var notFound *types.QueueDoesNotExist
	if !r.AutoCreate || !errors.As(err, &notFound) {
		return "", fmt.Errorf("resolve queue %q: %w", name, err)
	}

	created, err := r.Client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			"ReceiveMessageWaitTimeSeconds": "20",
		},
	})
	if err != nil {
		return "", fmt.Errorf("create queue %q: %w", name, err)
	}
	return aws.ToString(created.QueueUrl), nil
}

// CachingResolver wraps another resolver and resolves each name at most
// once. Safe for concurrent use.
type CachingResolver struct {
	Resolver DestinationResolver

	mu    sync.Mutex
	cache map[string]string
}

func NewCachingResolver(r DestinationResolver) *CachingResolver {
	return &CachingResolver{
		Resolver: r,
		cache:    make(map[string]string),
	}
}

func (r *CachingResolver) ResolveDestination(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	if url, ok := r.cache[name]; ok {
		r.mu.Unlock()
		return url, nil
	}
	r.mu.Unlock()

	url, err := r.Resolver.ResolveDestination(ctx, name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.cache[name] = url
	r.mu.Unlock()
	return url, nil
}
