/*
Package sqslistener contains a polling message listener container for SQS,
similar in shape to the listener containers found in messaging frameworks:
one polling goroutine per queue feeding a shared bounded pool of handler
workers, with at-least-once delivery semantics.

The main structure is the Container, which resolves the configured queues at
start, polls each one and dispatches every received message to a
MessageHandler. A successfully handled message is deleted from its queue; a
failed one is left in flight so the queue redelivers it once the visibility
timeout expires.

# Basic Usage

	client := sqs.NewFromConfig(cfg)

	registry := dispatch.NewRegistry(
		dispatch.WithSender(send.NewQueueSender(client, nil)),
	)
	registry.MustRegister("orders", dispatch.Typed(
		func(ctx context.Context, order Order, msg sqslistener.Message) (any, error) {
			return Receipt{ID: order.ID}, process(ctx, order)
		}), dispatch.SendTo("receipts"))

	container := sqslistener.NewContainer(client, registry, sqslistener.ContainerConfig{
		Queues: []sqslistener.QueueConfig{{
			Name:              "orders",
			MaxMessages:       10,
			WaitTime:          20 * time.Second,
			VisibilityTimeout: 30 * time.Second,
		}},
		WorkerCount: 4,
	})

	if err := container.Start(ctx); err != nil {
		log.Fatal(err)
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
	<-sigC

	container.Stop(context.Background())

Handler payloads are decoded by an ordered converter chain (plain text first,
JSON after); handler return values are converted the same way and published
to the registration's reply destination.
*/
package sqslistener
