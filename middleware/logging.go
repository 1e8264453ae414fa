package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tinexw/sqslistener"
)

// Logging logs one line per handled message with the outcome and duration.
func Logging(log *zap.Logger) Decorator {
	return func(next sqslistener.HandlerFunc) sqslistener.HandlerFunc {
		return func(ctx context.Context, msg sqslistener.Message) error {
			start := time.Now()
			err := next(ctx, msg)

			fields := []zap.Field{
				zap.String("queue", msg.Queue),
				zap.String("message_id", msg.ID),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				log.Warn("message handling failed", append(fields, zap.Error(err))...)
			} else {
				log.Debug("message handled", fields...)
			}
			return err
		}
	}
}
