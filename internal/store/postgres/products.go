package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/product"
)

const productColumns = `
	id::text, name, description, brand, category, images, price_amount, price_currency,
	carbon_footprint, eco_score, certifications, materials, recyclable, biodegradable,
	affiliate_url, affiliate_commission, affiliate_tracking_code,
	views, clicks, purchases, rating_average, rating_count,
	is_featured, is_active, is_premium_only, tags, stock_status, created_at, updated_at`

var productOrder = map[product.SortBy]string{
	product.SortEcoScore:  "eco_score DESC",
	product.SortPriceLow:  "price_amount ASC",
	product.SortPriceHigh: "price_amount DESC",
	product.SortPopular:   "views DESC",
	product.SortRating:    "rating_average DESC",
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p                     product.Product
		category, stockStatus string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Brand, &category, &p.Images, &p.Price.Amount, &p.Price.Currency,
		&p.Sustainability.CarbonFootprint, &p.Sustainability.EcoScore, &p.Sustainability.Certifications,
		&p.Sustainability.Materials, &p.Sustainability.Recyclable, &p.Sustainability.Biodegradable,
		&p.Affiliate.URL, &p.Affiliate.Commission, &p.Affiliate.TrackingCode,
		&p.Stats.Views, &p.Stats.Clicks, &p.Stats.Purchases, &p.Stats.Rating.Average, &p.Stats.Rating.Count,
		&p.IsFeatured, &p.IsActive, &p.IsPremiumOnly, &p.Tags, &stockStatus, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Category = product.Category(category)
	p.StockStatus = product.StockStatus(stockStatus)
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *product.Product) error {
	images, certs := p.Images, p.Sustainability.Certifications
	if images == nil {
		images = []product.Image{}
	}
	if certs == nil {
		certs = []product.Certification{}
	}
	materials, tags := p.Sustainability.Materials, p.Tags
	if materials == nil {
		materials = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	stock := p.StockStatus
	if stock == "" {
		stock = product.InStock
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO products (
			id, name, description, brand, category, images, price_amount, price_currency,
			carbon_footprint, eco_score, certifications, materials, recyclable, biodegradable,
			affiliate_url, affiliate_commission, affiliate_tracking_code,
			views, clicks, purchases, rating_average, rating_count,
			is_featured, is_active, is_premium_only, tags, stock_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
			$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		p.ID, p.Name, p.Description, p.Brand, string(p.Category), images, p.Price.Amount, p.Price.Currency,
		p.Sustainability.CarbonFootprint, p.Sustainability.EcoScore, certs,
		materials, p.Sustainability.Recyclable, p.Sustainability.Biodegradable,
		p.Affiliate.URL, p.Affiliate.Commission, p.Affiliate.TrackingCode,
		p.Stats.Views, p.Stats.Clicks, p.Stats.Purchases, p.Stats.Rating.Average, p.Stats.Rating.Count,
		p.IsFeatured, p.IsActive, p.IsPremiumOnly, tags, string(stock), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("Product already exists")
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (s *Store) getProduct(ctx context.Context, where string, arg any) (*product.Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Product not found")
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*product.Product, error) {
	if !validID(id) {
		return nil, apperr.NotFound("Product not found")
	}
	return s.getProduct(ctx, "id = $1", id)
}

func (s *Store) GetProductByName(ctx context.Context, name string) (*product.Product, error) {
	return s.getProduct(ctx, "name = $1", name)
}

func (s *Store) ListProducts(ctx context.Context, f product.Filter) ([]product.Product, error) {
	conds := []string{"is_active"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		conds = append(conds, "category = "+arg(string(f.Category)))
	}
	if f.MinEcoScore != nil {
		conds = append(conds, "eco_score >= "+arg(*f.MinEcoScore))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price_amount <= "+arg(*f.MaxPrice))
	}
	if !f.IncludePremium {
		conds = append(conds, "NOT is_premium_only")
	}
	if f.FeaturedOnly {
		conds = append(conds, "is_featured")
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY ` + productOrder[f.Sort.Normalize()] + `, name`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	out := []product.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	return out, nil
}

func (s *Store) CountProductsByCategory(ctx context.Context) (map[product.Category]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT category, COUNT(*)
		FROM products
		WHERE is_active
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	defer rows.Close()

	counts := make(map[product.Category]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan product count: %w", err)
		}
		counts[product.Category(category)] = n
	}
	return counts, rows.Err()
}

func (s *Store) bumpProduct(ctx context.Context, id, column string) error {
	if !validID(id) {
		return apperr.NotFound("Product not found")
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE products SET `+column+` = `+column+` + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("Product not found")
	}
	return nil
}

func (s *Store) RecordProductView(ctx context.Context, id string) error {
	return s.bumpProduct(ctx, id, "views")
}

func (s *Store) RecordProductClick(ctx context.Context, id string) error {
	return s.bumpProduct(ctx, id, "clicks")
}
