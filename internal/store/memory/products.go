package memory

import (
	"context"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/product"
)

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[p.ID]; ok {
		return apperr.Conflict("Product already exists")
	}
	for _, existing := range s.products {
		if existing.Name == p.Name {
			return apperr.Conflict("Product already exists")
		}
	}
	s.products[p.ID] = p.Clone()
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, apperr.NotFound("Product not found")
	}
	return p.Clone(), nil
}

func (s *Store) GetProductByName(ctx context.Context, name string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Name == name {
			return p.Clone(), nil
		}
	}
	return nil, apperr.NotFound("Product not found")
}

func (s *Store) ListProducts(ctx context.Context, f product.Filter) ([]product.Product, error) {
	s.mu.RLock()
	out := []product.Product{}
	for _, p := range s.products {
		if f.Match(p) {
			out = append(out, *p.Clone())
		}
	}
	s.mu.RUnlock()

	product.Sort(out, f.Sort)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountProductsByCategory(ctx context.Context) (map[product.Category]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[product.Category]int)
	for _, p := range s.products {
		if p.IsActive {
			counts[p.Category]++
		}
	}
	return counts, nil
}

func (s *Store) bumpProduct(id string, fn func(st *product.Stats)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return apperr.NotFound("Product not found")
	}
	fn(&p.Stats)
	return nil
}

func (s *Store) RecordProductView(ctx context.Context, id string) error {
	return s.bumpProduct(id, func(st *product.Stats) { st.Views++ })
}

func (s *Store) RecordProductClick(ctx context.Context, id string) error {
	return s.bumpProduct(id, func(st *product.Stats) { st.Clicks++ })
}
