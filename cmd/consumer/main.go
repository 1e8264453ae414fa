// Command consumer runs a listener container from a configuration file. Each
// configured queue gets a handler that logs the message payload and, when a
// send_to destination is configured, forwards the payload there.
//
// Usage:
//
//	consumer -config config.yaml
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/tinexw/sqslistener"
	"github.com/tinexw/sqslistener/config"
	"github.com/tinexw/sqslistener/dispatch"
	"github.com/tinexw/sqslistener/middleware"
	"github.com/tinexw/sqslistener/send"
)

var configPath = flag.String("config", "", "path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := cfg.Logger.BuildLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Fatal("failed to load AWS configuration", zap.Error(err))
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = awsv2.String(cfg.AWS.Endpoint)
		}
	})

	resolver := sqslistener.NewCachingResolver(&sqslistener.DynamicResolver{
		Client:     client,
		AutoCreate: cfg.Listener.AutoCreateQueues,
	})

	// The container is constructed after the registry, so the reporter
	// closes over the variable. It is only invoked once handling starts.
	var container *sqslistener.Container
	registry := newRegistry(cfg, client, resolver, logger, func(err error) {
		container.ReportError(err)
	})

	container = sqslistener.NewContainer(client, registry, cfg.ContainerConfig(),
		sqslistener.WithLogger(logger),
		sqslistener.WithResolver(resolver),
	)

	go func() {
		for err := range container.Errors() {
			logger.Warn("listener error", zap.Error(err))
		}
	}()

	if err := container.Start(ctx); err != nil {
		logger.Fatal("failed to start listener container", zap.Error(err))
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)
	<-sigC

	logger.Info("received signal, stopping")
	if err := container.Stop(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func newRegistry(cfg *config.Config, client sqslistener.SQSAPI, resolver sqslistener.DestinationResolver, logger *zap.Logger, report func(error)) *dispatch.Registry {
	registry := dispatch.NewRegistry(
		dispatch.WithSender(send.NewQueueSender(client, resolver)),
		dispatch.WithLogger(logger),
		dispatch.WithErrorReporter(report),
		dispatch.Use(
			middleware.Logging(logger),
			middleware.VisibilityExtender(client, logger),
		),
	)

	for _, q := range cfg.Listener.Queues {
		q := q
		opts := []dispatch.HandlerOption{}
		if q.SendTo != "" {
			opts = append(opts, dispatch.SendTo(q.SendTo))
		}
		registry.MustRegister(q.Name, func(ctx context.Context, payload any, msg sqslistener.Message) (any, error) {
			logger.Info("received message",
				zap.String("queue", msg.Queue),
				zap.String("message_id", msg.ID),
				zap.Any("payload", payload),
			)
			if q.SendTo == "" {
				return nil, nil
			}
			return payload, nil
		}, opts...)
	}
	return registry
}
