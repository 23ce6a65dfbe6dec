package devices

import (
	"context"

	"github.com/storelinkhq/storelink-server/cmd/models"
)

// TokenRegistry interface for device token persistence
type TokenRegistry interface {
	Upsert(ctx context.Context, device models.DeviceToken) (models.DeviceToken, error)
	Remove(ctx context.Context, token string) error
}

// RateLimiter interface for per-source request throttling
type RateLimiter interface {
	Allow(ctx context.Context, source string) bool
}
