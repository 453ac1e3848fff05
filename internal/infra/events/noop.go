package events

import (
	"context"

	"signals-platform/internal/domain/ports/adapter"
	"signals-platform/internal/infra/logging"

	"github.com/rs/zerolog"
)

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct {
	log *zerolog.Logger
}

// Compile-time check
var _ adapter.EventPublisher = (*NoopPublisher)(nil)

func NewNoopPublisher(logger *zerolog.Logger) *NoopPublisher {
	if logger == nil {
		logger = logging.Silent()
	}
	compLog := logger.With().Str("component", "NoopPublisher").Logger()
	return &NoopPublisher{log: &compLog}
}

func (p *NoopPublisher) Publish(ctx context.Context, routingKey string, _ any) error {
	p.log.Debug().Str("routing_key", routingKey).Msg("event dropped")
	return nil
}

func (p *NoopPublisher) Close() error { return nil }
