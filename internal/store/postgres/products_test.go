package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/product"
)

func TestProductRoundTrip(t *testing.T) {
	s := New(setupTestDB(t), time.UTC)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	p := &product.Product{
		ID:          uuid.NewString(),
		Name:        "Test product " + uuid.NewString(),
		Description: "integration",
		Brand:       product.Brand{Name: "EcoWear", SustainabilityCertifications: []string{"GOTS"}},
		Category:    product.CategoryFashion,
		Images:      []product.Image{{URL: "https://example.com/a.jpg", Alt: "shirt"}},
		Price:       product.Price{Amount: 29.99, Currency: product.DefaultCurrency},
		Sustainability: product.Sustainability{
			EcoScore:       92,
			Certifications: []product.Certification{{Name: "GOTS", VerifiedBy: "Control Union"}},
			Materials:      []string{"organic cotton"},
			Recyclable:     true,
		},
		Affiliate:     product.Affiliate{URL: "https://example.com/buy", Commission: 10},
		IsActive:      true,
		IsPremiumOnly: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateProduct(ctx, p))
	assert.True(t, apperr.Is(s.CreateProduct(ctx, p), apperr.KindConflict))

	got, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Brand, got.Brand)
	assert.Equal(t, p.Images, got.Images)
	assert.Equal(t, p.Sustainability, got.Sustainability)
	assert.Equal(t, product.InStock, got.StockStatus)

	require.NoError(t, s.RecordProductView(ctx, p.ID))
	require.NoError(t, s.RecordProductClick(ctx, p.ID))
	got, err = s.GetProductByName(ctx, p.Name)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Stats.Views)
	assert.Equal(t, int64(1), got.Stats.Clicks)

	listed, err := s.ListProducts(ctx, product.Filter{Category: product.CategoryFashion})
	require.NoError(t, err)
	for _, l := range listed {
		assert.NotEqual(t, p.ID, l.ID)
	}

	counts, err := s.CountProductsByCategory(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts[product.CategoryFashion], 1)

	assert.True(t, apperr.Is(s.RecordProductClick(ctx, uuid.NewString()), apperr.KindNotFound))
	_, err = s.GetProduct(ctx, "not-a-uuid")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
