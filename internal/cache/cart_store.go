package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// ErrCartContention is returned when an update keeps losing the optimistic lock race
var ErrCartContention = errors.New("cart is being modified concurrently")

const maxUpdateRetries = 10

// RedisCartStore keeps one JSON-encoded cart per identity with a sliding TTL
type RedisCartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCartStore(rdb *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{rdb: rdb, ttl: ttl}
}

func cartKey(key string) string {
	return "cart:" + key
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisCartStore) read(ctx context.Context, c getter, key string, id models.CartIdentity) (*models.Cart, error) {
	data, err := c.Get(ctx, cartKey(key)).Bytes()
	if err == redis.Nil {
		return models.NewCart(id), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	cart := &models.Cart{}
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

// GetOrCreate returns the stored cart or a fresh empty one without persisting it
func (s *RedisCartStore) GetOrCreate(ctx context.Context, id models.CartIdentity) (*models.Cart, error) {
	key, err := id.Key()
	if err != nil {
		return nil, err
	}
	return s.read(ctx, s.rdb, key, id)
}

// Save writes the cart under its owner's key and refreshes the TTL
func (s *RedisCartStore) Save(ctx context.Context, cart *models.Cart) error {
	if cart == nil {
		return models.ErrNilCart
	}
	key, err := cart.Identity().Key()
	if err != nil {
		return err
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := s.rdb.Set(ctx, cartKey(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Clear removes the identity's cart
func (s *RedisCartStore) Clear(ctx context.Context, id models.CartIdentity) error {
	key, err := id.Key()
	if err != nil {
		return err
	}
	return s.ClearByKey(ctx, key)
}

// ClearByKey removes the cart stored under key
func (s *RedisCartStore) ClearByKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.rdb.Del(ctx, cartKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// Update applies fn under WATCH and retries when another writer got there
// first, so fn may run more than once and must only depend on the cart it is given.
func (s *RedisCartStore) Update(ctx context.Context, id models.CartIdentity, fn func(cart *models.Cart) error) (*models.Cart, error) {
	key, err := id.Key()
	if err != nil {
		return nil, err
	}
	rkey := cartKey(key)

	var result *models.Cart
	txf := func(tx *redis.Tx) error {
		cart, err := s.read(ctx, tx, key, id)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		data, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rkey, data, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = cart
		return nil
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, rkey)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, ErrCartContention
}

var _ repositories.CartStore = (*RedisCartStore)(nil)
