package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency deletes the key so the guarded operation can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type SessionRepository interface {
	// SaveSession stores the wizard snapshot, refreshing its expiry
	SaveSession(ctx context.Context, snapshot domain.WizardSnapshot) error

	// LoadSession returns the snapshot, nil if the session is unknown or expired
	LoadSession(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error)

	// DeleteSession discards the snapshot
	DeleteSession(ctx context.Context, sessionID string) error
}

type CartCache interface {
	// GetCart returns ErrCacheMiss when the cart is not cached
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)

	SetCart(ctx context.Context, cart *domain.Cart) error

	DeleteCart(ctx context.Context, cartID string) error
}
