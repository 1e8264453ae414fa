package sqslistener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Errors returned by Start and Stop.
var (
	ErrNoQueues    = errors.New("no queues configured")
	ErrNoHandler   = errors.New("no handler registered for queue")
	ErrStopping    = errors.New("container is stopping")
	ErrStopTimeout = errors.New("shutdown grace period exceeded")
)

// QueueConfig describes one queue to poll. Zero values fall back to the
// long-polling defaults below.
type QueueConfig struct {
	// Name is the logical queue name, resolved to a URL at Start.
	Name string
	// MaxMessages bounds a single receive call, 1..10.
	MaxMessages int32
	// WaitTime is the long-poll wait per receive call.
	WaitTime time.Duration
	// VisibilityTimeout overrides the queue's own visibility timeout for
	// messages received by this container. Zero keeps the queue default, in
	// which case handler contexts carry no deadline.
	VisibilityTimeout time.Duration
}

// ContainerConfig configures a Container.
type ContainerConfig struct {
	Queues []QueueConfig
	// WorkerCount is the size of the shared handler pool. Defaults to twice
	// the queue count.
	WorkerCount int
	// Backoff is the fixed delay before retrying after a failed receive.
	Backoff time.Duration
	// ShutdownGrace bounds how long Stop waits for in-flight handlers.
	ShutdownGrace time.Duration
}

const (
	defaultMaxMessages   = 10
	defaultWaitTime      = 20 * time.Second
	defaultBackoff       = 10 * time.Second
	defaultShutdownGrace = 20 * time.Second
)

func (c ContainerConfig) withDefaults() ContainerConfig {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 2 * len(c.Queues)
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = defaultShutdownGrace
	}
	queues := make([]QueueConfig, len(c.Queues))
	copy(queues, c.Queues)
	for i := range queues {
		if queues[i].MaxMessages <= 0 || queues[i].MaxMessages > 10 {
			queues[i].MaxMessages = defaultMaxMessages
		}
		if queues[i].WaitTime <= 0 {
			queues[i].WaitTime = defaultWaitTime
		}
	}
	c.Queues = queues
	return c
}

type containerState uint8

const (
	stateStopped containerState = iota
	stateRunning
	stateStopping
)

// Container polls one or more queues and dispatches received messages to a
// MessageHandler through a shared bounded worker pool. Successfully handled
// messages are deleted; failed ones are left in flight so the queue
// redelivers them after the visibility timeout.
type Container struct {
	client   SQSAPI
	handler  MessageHandler
	resolver DestinationResolver
	config   ContainerConfig
	log      *zap.Logger
	errs     chan error

	mu           sync.Mutex
	state        containerState
	work         chan task
	pollers      *errgroup.Group
	pollCancel   context.CancelFunc
	handleCancel context.CancelFunc
	workersDone  chan struct{}
	stopDone     chan struct{}
}

// ContainerOption customises a Container.
type ContainerOption func(*Container)

// WithLogger sets the logger, which defaults to a no-op logger.
func WithLogger(log *zap.Logger) ContainerOption {
	return func(c *Container) { c.log = log }
}

// WithResolver replaces the default caching GetQueueUrl-based resolver.
func WithResolver(r DestinationResolver) ContainerOption {
	return func(c *Container) { c.resolver = r }
}

func NewContainer(client SQSAPI, handler MessageHandler, config ContainerConfig, opts ...ContainerOption) *Container {
	c := &Container{
		client:  client,
		handler: handler,
		config:  config.withDefaults(),
		log:     zap.NewNop(),
		errs:    make(chan error, 64),
	}
	for _, o := range opts {
		o(c)
	}
	if c.resolver == nil {
		c.resolver = NewCachingResolver(&DynamicResolver{Client: client})
	}
	return c
}

// Errors returns the channel on which asynchronous receive, acknowledge and
// publish failures are reported. Errors are dropped when the channel is not
// drained.
func (c *Container) Errors() <-chan error {
	return c.errs
}

// ReportError places err on the Errors channel, dropping it when the channel
// is full. Handler-side components use it to surface failures that must not
// fail the handled message, such as reply publishes.
func (c *Container) ReportError(err error) {
	c.reportError(err)
}

// IsRunning reports whether the container is polling.
func (c *Container) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRunning
}

// resolvedQueue is a queue descriptor fixed at Start.
type resolvedQueue struct {
	QueueConfig
	url string
}

// Start resolves every configured queue, verifies each has a registered
// handler and begins polling. Calling Start on a running container is a
// no-op. Resolution and registration failures are fatal: the container stays
// stopped and no goroutines are started. The context only bounds queue
// resolution; polling continues until Stop.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateRunning:
		return nil
	case stateStopping:
		return ErrStopping
	}

	if len(c.config.Queues) == 0 {
		return ErrNoQueues
	}

	queues := make([]resolvedQueue, 0, len(c.config.Queues))
	for _, q := range c.config.Queues {
		if !c.handler.CanHandle(q.Name) {
			return fmt.Errorf("%w: %q", ErrNoHandler, q.Name)
		}
		url, err := c.resolver.ResolveDestination(ctx, q.Name)
		if err != nil {
			return err
		}
		queues = append(queues, resolvedQueue{QueueConfig: q, url: url})
	}

	pollCtx, pollCancel := context.WithCancel(context.Background())
	handleCtx, handleCancel := context.WithCancel(context.Background())
	work := make(chan task, c.config.WorkerCount)
	c.pollCancel = pollCancel
	c.handleCancel = handleCancel
	c.work = work
	c.workersDone = c.startWorkers(handleCtx, work)

	// The pollers never return errors, so no derived context is needed.
	c.pollers = &errgroup.Group{}
	for _, q := range queues {
		q := q
		c.pollers.Go(func() error {
			c.poll(pollCtx, q, work)
			return nil
		})
	}

	c.state = stateRunning
	c.log.Info("listener container started",
		zap.Int("queues", len(queues)),
		zap.Int("workers", c.config.WorkerCount),
	)
	return nil
}

// Stop signals the pollers to exit after their current receive call returns
// and waits for in-flight handlers up to the shutdown grace period (or until
// ctx is done, whichever is earlier). Handlers are only cancelled once that
// period expires. Stop on a stopped container is a no-op; Stop while another
// Stop is draining waits for that shutdown to finish.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateStopped:
		c.mu.Unlock()
		return nil
	case stateStopping:
		done := c.stopDone
		c.mu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.state = stateStopping
	c.stopDone = make(chan struct{})
	stopDone := c.stopDone
	pollCancel := c.pollCancel
	handleCancel := c.handleCancel
	pollers := c.pollers
	work := c.work
	workersDone := c.workersDone
	c.mu.Unlock()

	pollCancel()
	pollers.Wait() //nolint:errcheck // pollers never return errors
	close(work)

	var err error
	select {
	case <-workersDone:
	case <-time.After(c.config.ShutdownGrace):
		err = ErrStopTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}
	handleCancel()

	c.mu.Lock()
	c.state = stateStopped
	close(stopDone)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("listener container stopped with unfinished handlers", zap.Error(err))
	} else {
		c.log.Info("listener container stopped")
	}
	return err
}

// poll is the per-queue receive loop.
func (c *Container) poll(ctx context.Context, q resolvedQueue, work chan<- task) {
	log := c.log.With(zap.String("queue", q.Name))
	log.Debug("poller started", zap.String("url", q.url))

	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.url),
		MaxNumberOfMessages:   q.MaxMessages,
		WaitTimeSeconds:       int32(q.WaitTime / time.Second),
		MessageAttributeNames: []string{"All"},
	}
	if q.VisibilityTimeout > 0 {
		input.VisibilityTimeout = int32(q.VisibilityTimeout / time.Second)
	}

	for {
		select {
		case <-ctx.Done():
			log.Debug("poller stopped")
			return
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				log.Debug("poller stopped")
				return
			}
			log.Warn("receive failed, backing off",
				zap.Duration("backoff", c.config.Backoff),
				zap.Error(err),
			)
			c.reportError(fmt.Errorf("receive from %q: %w", q.Name, err))
			select {
			case <-ctx.Done():
			case <-time.After(c.config.Backoff):
			}
			continue
		}
		receivedAt := time.Now()

		for _, raw := range out.Messages {
			if raw.Body == nil || raw.ReceiptHandle == nil {
				continue
			}
			headers, err := DecodeAttributes(raw.MessageAttributes)
			if err != nil {
				// Leave the message unacknowledged so it is redelivered once
				// the visibility timeout expires.
				log.Warn("dropping receive with undecodable attributes",
					zap.String("message_id", aws.ToString(raw.MessageId)),
					zap.Error(err),
				)
				c.reportError(fmt.Errorf("decode attributes of message %s: %w", aws.ToString(raw.MessageId), err))
				continue
			}

			t := task{
				msg: Message{
					ID:            aws.ToString(raw.MessageId),
					ReceiptHandle: aws.ToString(raw.ReceiptHandle),
					Body:          aws.ToString(raw.Body),
					Queue:         q.Name,
					QueueURL:      q.url,
					Headers:       headers,
				},
			}
			if q.VisibilityTimeout > 0 {
				t.deadline = receivedAt.Add(q.VisibilityTimeout)
			}

			select {
			case work <- t:
			case <-ctx.Done():
				log.Debug("poller stopped")
				return
			}
		}
	}
}

func (c *Container) reportError(err error) {
	select {
	case c.errs <- err:
	default:
	}
}
