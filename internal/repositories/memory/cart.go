package memory

import (
	"context"
	"sync"

	"ticketing-checkout/internal/models"
	"ticketing-checkout/internal/repositories"
)

// CartStore keeps carts in process memory. Updates to one identity are
// serialized by a per-key lock; different identities proceed in parallel.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]*models.Cart
	locks map[string]*sync.Mutex
}

// NewCartStore creates an empty cart store
func NewCartStore() *CartStore {
	return &CartStore{
		carts: make(map[string]*models.Cart),
		locks: make(map[string]*sync.Mutex),
	}
}

func (s *CartStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *CartStore) load(key string) (*models.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart, ok := s.carts[key]
	if !ok {
		return nil, false
	}
	return cart.Clone(), true
}

func (s *CartStore) store(key string, cart *models.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[key] = cart.Clone()
}

// GetOrCreate returns the stored cart or a fresh empty one. The fresh cart is not persisted.
func (s *CartStore) GetOrCreate(ctx context.Context, id models.CartIdentity) (*models.Cart, error) {
	key, err := id.Key()
	if err != nil {
		return nil, err
	}
	if cart, ok := s.load(key); ok {
		return cart, nil
	}
	return models.NewCart(id), nil
}

// Save stores the cart under its owner's key
func (s *CartStore) Save(ctx context.Context, cart *models.Cart) error {
	if cart == nil {
		return models.ErrNilCart
	}
	key, err := cart.Identity().Key()
	if err != nil {
		return err
	}
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	s.store(key, cart)
	return nil
}

// Clear removes the identity's cart
func (s *CartStore) Clear(ctx context.Context, id models.CartIdentity) error {
	key, err := id.Key()
	if err != nil {
		return err
	}
	return s.ClearByKey(ctx, key)
}

// ClearByKey removes the cart stored under key
func (s *CartStore) ClearByKey(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	s.mu.Lock()
	delete(s.carts, key)
	s.mu.Unlock()
	return nil
}

// Update runs fn on a copy of the cart while holding the identity's lock and saves the result
func (s *CartStore) Update(ctx context.Context, id models.CartIdentity, fn func(cart *models.Cart) error) (*models.Cart, error) {
	key, err := id.Key()
	if err != nil {
		return nil, err
	}
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	cart, ok := s.load(key)
	if !ok {
		cart = models.NewCart(id)
	}
	if err := fn(cart); err != nil {
		return nil, err
	}
	s.store(key, cart)
	return cart.Clone(), nil
}

var _ repositories.CartStore = (*CartStore)(nil)
