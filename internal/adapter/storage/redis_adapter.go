package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/port"
)

const (
	sessionKeyPrefix  = "checkout:session:"
	cartKeyPrefix     = "cart:"
	idempotencyKeyTTL = 24 * time.Hour
	defaultSessionTTL = 2 * time.Hour
	defaultCartTTL    = 5 * time.Minute
	cartTTLJitter     = 60 // seconds
)

type RedisAdapter struct {
	client     *redis.Client
	sessionTTL time.Duration
	cartTTL    time.Duration
}

func NewRedisAdapter(client *redis.Client, sessionTTL, cartTTL time.Duration) *RedisAdapter {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if cartTTL <= 0 {
		cartTTL = defaultCartTTL
	}
	return &RedisAdapter{client: client, sessionTTL: sessionTTL, cartTTL: cartTTL}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) SaveSession(ctx context.Context, snapshot domain.WizardSnapshot) error {
	if snapshot.SessionID == "" {
		return errors.New("session id is required")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+snapshot.SessionID, data, r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisAdapter) LoadSession(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var snapshot domain.WizardSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return &snapshot, nil
}

func (r *RedisAdapter) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (r *RedisAdapter) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKeyPrefix+cartID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

// SetCart caches the cart with a jittered TTL so carts cached together do not
// expire together.
func (r *RedisAdapter) SetCart(ctx context.Context, cart *domain.Cart) error {
	if cart == nil || cart.ID == "" {
		return errors.New("cart id is required")
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	ttl := r.cartTTL + time.Duration(rand.Intn(cartTTLJitter))*time.Second
	if err := r.client.Set(ctx, cartKeyPrefix+cart.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisAdapter) DeleteCart(ctx context.Context, cartID string) error {
	if err := r.client.Del(ctx, cartKeyPrefix+cartID).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
