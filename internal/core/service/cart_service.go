package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
	"github.com/rl1809/storefront-checkout/internal/port"
)

var (
	ErrInvalidItem = errors.New("invalid cart item")
	ErrNoCart      = errors.New("no cart")
)

type CartService struct {
	api             port.CommerceAPI
	cache           port.CartCache
	sfg             singleflight.Group
	dummyCartID     string
	defaultCurrency string
	logger          *zap.Logger
}

func NewCartService(api port.CommerceAPI, cache port.CartCache, dummyCartID, defaultCurrency string, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartService{
		api:             api,
		cache:           cache,
		dummyCartID:     dummyCartID,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// GetCart reads through the cache. Concurrent misses for one cart share a single
// backend call. A ref without a cart id, or the placeholder id, has no cart.
func (s *CartService) GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	if !s.hasCart(ref) {
		return nil, nil
	}

	v, err, _ := s.sfg.Do(ref.CartID, func() (interface{}, error) {
		cart, err := s.cache.GetCart(ctx, ref.CartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, port.ErrCacheMiss) {
			s.logger.Warn("cart cache get failed", zap.String("cart_id", ref.CartID), zap.Error(err))
		}

		cart, err = s.api.GetCart(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("get cart: %w", err)
		}
		if cart == nil {
			return (*domain.Cart)(nil), nil
		}

		if err := s.cache.SetCart(ctx, cart); err != nil {
			s.logger.Warn("cart cache set failed", zap.String("cart_id", ref.CartID), zap.Error(err))
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) Invalidate(ctx context.Context, ref domain.CartRef) {
	if ref.CartID == "" {
		return
	}
	if err := s.cache.DeleteCart(ctx, ref.CartID); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("cart_id", ref.CartID), zap.Error(err))
	}
}

// View returns the normalized cart; a missing cart yields the empty view.
func (s *CartService) View(ctx context.Context, ref domain.CartRef) (domain.CartView, error) {
	cart, err := s.GetCart(ctx, ref)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.Normalize(cart), nil
}

func (s *CartService) Normalize(cart *domain.Cart) domain.CartView {
	return domain.NormalizeCart(cart, s.defaultCurrency)
}

type AddItemResult struct {
	Cart      *domain.Cart
	CartID    string
	CartToken string
	Created   bool
}

// AddItem adds a line to the cart, creating the cart first when the storefront
// still holds the placeholder id. Quantity defaults to 1.
func (s *CartService) AddItem(ctx context.Context, ref domain.CartRef, item domain.NewCartItem) (*AddItemResult, error) {
	if item.ProductID == "" || item.VariantID == "" || item.Quantity < 0 {
		return nil, ErrInvalidItem
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	if !s.hasCart(ref) {
		created, err := s.api.CreateCart(ctx, ref, []domain.NewCartItem{item})
		if err != nil {
			return nil, fmt.Errorf("create cart: %w", err)
		}
		if created == nil || created.Cart == nil {
			return nil, fmt.Errorf("create cart: %w", ErrNoCart)
		}
		s.logger.Info("cart created", zap.String("cart_id", created.Cart.ID))
		return &AddItemResult{Cart: created.Cart, CartID: created.Cart.ID, CartToken: created.Token, Created: true}, nil
	}

	cart, err := s.api.AddCartItems(ctx, ref, []domain.NewCartItem{item})
	if err != nil {
		return nil, fmt.Errorf("add cart items: %w", err)
	}
	s.Invalidate(ctx, ref)
	return &AddItemResult{Cart: cart, CartID: ref.CartID, CartToken: ref.CartToken}, nil
}

func (s *CartService) RemoveItem(ctx context.Context, ref domain.CartRef, itemID string) (*domain.Cart, error) {
	if itemID == "" {
		return nil, ErrInvalidItem
	}
	if !s.hasCart(ref) {
		return nil, ErrNoCart
	}

	cart, err := s.api.RemoveCartItems(ctx, ref, []string{itemID})
	if err != nil {
		return nil, fmt.Errorf("remove cart items: %w", err)
	}
	s.Invalidate(ctx, ref)
	return cart, nil
}

func (s *CartService) hasCart(ref domain.CartRef) bool {
	return ref.CartID != "" && ref.CartID != s.dummyCartID
}
