package seeds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/product"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/pkg/logger"
)

type listing struct {
	name, description, brand string
	brandCerts               []string
	category                 product.Category
	price, footprint         float64
	ecoScore                 int
	cert                     product.Certification
	materials                []string
	recyclable, biodegrades  bool
	slug                     string
	commission               float64
	featured                 bool
	tags                     []string
}

func (l listing) product(n int) product.Product {
	return product.Product{
		Name:        l.name,
		Description: l.description,
		Brand:       product.Brand{Name: l.brand, SustainabilityCertifications: l.brandCerts},
		Category:    l.category,
		Images: []product.Image{{
			URL: "https://via.placeholder.com/600x600?text=" + strings.ReplaceAll(l.name, " ", "+"),
			Alt: l.name,
		}},
		Price: product.Price{Amount: l.price, Currency: product.DefaultCurrency},
		Sustainability: product.Sustainability{
			CarbonFootprint: l.footprint,
			EcoScore:        l.ecoScore,
			Certifications:  []product.Certification{l.cert},
			Materials:       l.materials,
			Recyclable:      l.recyclable,
			Biodegradable:   l.biodegrades,
		},
		Affiliate: product.Affiliate{
			URL:          "https://example.com/" + l.slug,
			Commission:   l.commission,
			TrackingCode: fmt.Sprintf("ECO%03d", n),
		},
		IsFeatured:  l.featured,
		IsActive:    true,
		Tags:        l.tags,
		StockStatus: product.InStock,
	}
}

var listings = []listing{
	{
		name: "Organic Cotton T-Shirt", brand: "EcoWear", brandCerts: []string{"GOTS", "Fair Trade"},
		description: "Soft, breathable 100% organic cotton t-shirt. Fair trade certified and sustainably produced.",
		category:    product.CategoryFashion, price: 29.99, footprint: 2.1, ecoScore: 92,
		cert:      product.Certification{Name: "GOTS", Icon: "🌿", VerifiedBy: "Global Organic Textile Standard"},
		materials: []string{"100% Organic Cotton"}, recyclable: true, biodegrades: true,
		slug: "organic-tshirt", commission: 10, featured: true,
		tags: []string{"organic", "cotton", "fair-trade", "eco-friendly"},
	},
	{
		name: "Bamboo Toothbrush Set", brand: "ZeroWaste Home", brandCerts: []string{"FSC"},
		description: "Biodegradable bamboo toothbrushes with soft bristles. Pack of 4.",
		category:    product.CategoryBeauty, price: 12.99, footprint: 0.3, ecoScore: 95,
		cert:      product.Certification{Name: "FSC Certified", Icon: "🌳", VerifiedBy: "Forest Stewardship Council"},
		materials: []string{"Bamboo", "Natural Bristles"}, biodegrades: true,
		slug: "bamboo-toothbrush", commission: 15, featured: true,
		tags: []string{"bamboo", "zero-waste", "biodegradable"},
	},
	{
		name: "Reusable Stainless Steel Water Bottle", brand: "HydroGreen", brandCerts: []string{"B Corp"},
		description: "Insulated 750ml water bottle keeps drinks cold for 24h, hot for 12h.",
		category:    product.CategoryHome, price: 34.99, footprint: 5.2, ecoScore: 88,
		cert:      product.Certification{Name: "B Corporation", Icon: "🏅", VerifiedBy: "B Lab"},
		materials: []string{"Stainless Steel", "Silicone"}, recyclable: true,
		slug: "water-bottle", commission: 12, featured: true,
		tags: []string{"reusable", "insulated", "stainless-steel"},
	},
	{
		name: "Solar Power Bank", brand: "SunCharge", brandCerts: []string{"RoHS"},
		description: "20000mAh solar power bank with fast charging. Perfect for outdoor adventures.",
		category:    product.CategoryElectronics, price: 49.99, footprint: 8.5, ecoScore: 78,
		cert:      product.Certification{Name: "RoHS Compliant", Icon: "⚡", VerifiedBy: "EU Directive"},
		materials: []string{"Recycled ABS Plastic", "Solar Panels"}, recyclable: true,
		slug: "solar-powerbank", commission: 8,
		tags: []string{"solar", "renewable", "electronics"},
	},
	{
		name: "Organic Coffee Beans - Fair Trade", brand: "EarthBrew",
		brandCerts:  []string{"Organic", "Fair Trade", "Rainforest Alliance"},
		description: "Single-origin organic coffee beans from sustainable farms. Rich flavor, ethically sourced.",
		category:    product.CategoryFood, price: 15.99, footprint: 3.2, ecoScore: 90,
		cert:      product.Certification{Name: "Fair Trade", Icon: "☕", VerifiedBy: "Fairtrade International"},
		materials: []string{"100% Organic Arabica Beans"}, recyclable: true, biodegrades: true,
		slug: "organic-coffee", commission: 18, featured: true,
		tags: []string{"organic", "fair-trade", "coffee"},
	},
	{
		name: "Recycled Yoga Mat", brand: "GreenFit", brandCerts: []string{"OEKO-TEX"},
		description: "Non-toxic yoga mat made from 100% recycled materials. Extra thick and durable.",
		category:    product.CategorySports, price: 44.99, footprint: 4.8, ecoScore: 85,
		cert:      product.Certification{Name: "OEKO-TEX", Icon: "✓", VerifiedBy: "OEKO-TEX Association"},
		materials: []string{"Recycled Rubber", "TPE"}, recyclable: true,
		slug: "yoga-mat", commission: 14,
		tags: []string{"recycled", "yoga", "fitness"},
	},
	{
		name: "Beeswax Food Wraps", brand: "BeeWrap Co", brandCerts: []string{"Organic", "Plastic-Free"},
		description: "Reusable food wraps made with organic cotton and beeswax. Set of 5 assorted sizes.",
		category:    product.CategoryHome, price: 22.99, footprint: 1.5, ecoScore: 94,
		cert:      product.Certification{Name: "Plastic-Free", Icon: "🚫", VerifiedBy: "Plastic Free Trust"},
		materials: []string{"Organic Cotton", "Beeswax", "Tree Resin", "Jojoba Oil"}, biodegrades: true,
		slug: "beeswax-wraps", commission: 16, featured: true,
		tags: []string{"zero-waste", "reusable", "plastic-free"},
	},
	{
		name: "LED Smart Bulb - Energy Efficient", brand: "BrightGreen", brandCerts: []string{"Energy Star"},
		description: "WiFi-enabled LED smart bulb. 90% more energy efficient than traditional bulbs.",
		category:    product.CategoryElectronics, price: 19.99, footprint: 2.8, ecoScore: 87,
		cert:      product.Certification{Name: "Energy Star", Icon: "⭐", VerifiedBy: "EPA"},
		materials: []string{"Recycled Aluminum", "LED Components"}, recyclable: true,
		slug: "led-bulb", commission: 10,
		tags: []string{"energy-efficient", "LED", "smart-home"},
	},
}

// Products returns a fresh copy of the default marketplace listings,
// without ids.
func Products() []product.Product {
	out := make([]product.Product, len(listings))
	for i, l := range listings {
		out[i] = l.product(i + 1)
	}
	return out
}

// ApplyProducts inserts every listing whose name is not taken yet.
func ApplyProducts(ctx context.Context, repo repository.ProductRepository, now time.Time) (int, error) {
	created := 0
	for _, p := range Products() {
		_, err := repo.GetProductByName(ctx, p.Name)
		if err == nil {
			continue
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return created, fmt.Errorf("failed to look up product %q: %w", p.Name, err)
		}

		p.ID = uuid.NewString()
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := p.Validate(); err != nil {
			return created, fmt.Errorf("invalid seed product %q: %w", p.Name, err)
		}
		if err := repo.CreateProduct(ctx, &p); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			return created, fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
		created++
	}

	logger.Info().Int("created", created).Msg("marketplace catalog seeded")
	return created, nil
}
