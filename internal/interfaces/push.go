package interfaces

import (
	"context"

	"storefront-sync/internal/models"
)

//go:generate mockgen -package=mock -source=push.go -destination=mock/push.go

// Subscription is a live push subscription; Close releases it
type Subscription interface {
	Close() error
}

// PushChannel is the optional realtime capability.
// A nil PushChannel means push is unavailable and consumers must poll.
type PushChannel interface {
	Subscribe(ctx context.Context, topic models.Topic, handler func(models.ChangeEvent)) (Subscription, error)
}
