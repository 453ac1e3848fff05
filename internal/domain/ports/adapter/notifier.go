package adapter

import (
	"context"

	"signals-platform/internal/domain/model"
)

// AdminNotifier tells the payment admins that something needs their attention.
type AdminNotifier interface {
	NotifyPendingPayment(ctx context.Context, payment *model.PendingPayment, offer *model.Offer) error
	NotifyPendingDigest(ctx context.Context, pending []*model.PendingPayment) error
}

// EventPublisher emits domain events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}
