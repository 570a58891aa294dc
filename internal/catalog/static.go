package catalog

import (
	"context"
	"sync"
)

// Static is an in-memory Lookup backed by fixture data.
type Static struct {
	mu       sync.RWMutex
	shops    map[string]Shop
	products map[int64]Product
}

// NewStatic builds a Static lookup from the given shops and products.
func NewStatic(shops []Shop, products []Product) *Static {
	s := &Static{
		shops:    make(map[string]Shop, len(shops)),
		products: make(map[int64]Product, len(products)),
	}
	for _, shop := range shops {
		s.shops[shop.Name] = shop
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

// PutProduct inserts or replaces a product.
func (s *Static) PutProduct(p Product) {
	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
}

// FindShopByName implements Lookup.
func (s *Static) FindShopByName(_ context.Context, name string) (Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shop, ok := s.shops[name]
	if !ok {
		return Shop{}, ErrNotFound
	}
	return shop, nil
}

// FindProductByID implements Lookup.
func (s *Static) FindProductByID(_ context.Context, id int64) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}
