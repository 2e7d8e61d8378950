package services

import (
	"context"
	"time"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/internal/product"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/pkg/logger"
)

const maxProductLimit = 100

// MarketplaceService serves the affiliate product catalog. Premium-only
// listings are visible to callers with an unexpired entitlement only.
type MarketplaceService struct {
	store repository.Store
	now   Clock
}

func NewMarketplaceService(store repository.Store) *MarketplaceService {
	return &MarketplaceService{store: store, now: time.Now}
}

func (s *MarketplaceService) SetClock(c Clock) { s.now = c }

type ProductQuery struct {
	Category    product.Category
	MinEcoScore *int
	MaxPrice    *float64
	SortBy      product.SortBy
	Limit       int
}

func (q ProductQuery) validate() error {
	if q.Category != "" && !q.Category.Valid() {
		return apperr.Validation("Invalid product category")
	}
	if q.MinEcoScore != nil && (*q.MinEcoScore < 0 || *q.MinEcoScore > 100) {
		return apperr.Validation("minEcoScore must be between 0 and 100")
	}
	if q.MaxPrice != nil && *q.MaxPrice < 0 {
		return apperr.Validation("maxPrice must not be negative")
	}
	return nil
}

// viewer loads the caller, or returns nil for anonymous requests.
func (s *MarketplaceService) viewer(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, nil
	}
	return s.store.GetUser(ctx, userID)
}

func (s *MarketplaceService) ListProducts(ctx context.Context, userID string, q ProductQuery) ([]product.Product, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	u, err := s.viewer(ctx, userID)
	if err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = catalogLimit
	}
	if limit > maxProductLimit {
		limit = maxProductLimit
	}

	return s.store.ListProducts(ctx, product.Filter{
		Category:       q.Category,
		MinEcoScore:    q.MinEcoScore,
		MaxPrice:       q.MaxPrice,
		IncludePremium: u != nil && u.HasPremium(s.now()),
		Sort:           q.SortBy.Normalize(),
		Limit:          limit,
	})
}

// visibleProduct loads an active product the caller may see.
func (s *MarketplaceService) visibleProduct(ctx context.Context, userID, id string) (*product.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperr.NotFound("Product not found")
	}
	u, err := s.viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !p.VisibleTo(u, s.now()) {
		return nil, apperr.Forbidden("Premium subscription required to view this product")
	}
	return p, nil
}

// GetProduct counts a view for every successful read.
func (s *MarketplaceService) GetProduct(ctx context.Context, userID, id string) (*product.Product, error) {
	p, err := s.visibleProduct(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.RecordProductView(ctx, p.ID); err != nil {
		logger.Warn().Err(err).Str("product_id", p.ID).Msg("failed to record product view")
		return p, nil
	}
	p.Stats.Views++
	return p, nil
}

type ClickResult struct {
	Message      string `json:"message"`
	AffiliateURL string `json:"affiliateUrl"`
}

func (s *MarketplaceService) TrackClick(ctx context.Context, userID, id string) (*ClickResult, error) {
	p, err := s.visibleProduct(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.RecordProductClick(ctx, p.ID); err != nil {
		return nil, err
	}
	metrics.AffiliateClicks.WithLabelValues(string(p.Category)).Inc()

	logger.Info().Str("user_id", userID).Str("product_id", p.ID).Msg("affiliate click tracked")
	return &ClickResult{Message: "Click tracked", AffiliateURL: p.Affiliate.URL}, nil
}

// Categories lists every category in display order with its count of
// active products.
func (s *MarketplaceService) Categories(ctx context.Context) ([]product.CategoryInfo, error) {
	counts, err := s.store.CountProductsByCategory(ctx)
	if err != nil {
		return nil, err
	}
	cats := product.Categories()
	for i := range cats {
		cats[i].ProductCount = counts[cats[i].ID]
	}
	return cats, nil
}

// Featured never includes premium-only listings.
func (s *MarketplaceService) Featured(ctx context.Context) ([]product.Product, error) {
	return s.store.ListProducts(ctx, product.Filter{
		FeaturedOnly: true,
		Sort:         product.SortEcoScore,
		Limit:        featuredLimit,
	})
}

// Catalog groups every product visible to the caller by category.
func (s *MarketplaceService) Catalog(ctx context.Context, userID string) (map[product.Category][]product.Product, error) {
	u, err := s.viewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	products, err := s.store.ListProducts(ctx, product.Filter{
		IncludePremium: u != nil && u.HasPremium(s.now()),
		Sort:           product.SortEcoScore,
	})
	if err != nil {
		return nil, err
	}

	catalog := make(map[product.Category][]product.Product)
	for _, p := range products {
		catalog[p.Category] = append(catalog[p.Category], p)
	}
	return catalog, nil
}
