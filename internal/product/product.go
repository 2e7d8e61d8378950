package product

import (
	"fmt"
	"sort"
	"time"

	"ecoStepAPI/internal/user"
)

type Category string

const (
	CategoryFashion     Category = "fashion"
	CategoryFood        Category = "food"
	CategoryHome        Category = "home"
	CategoryElectronics Category = "electronics"
	CategoryBeauty      Category = "beauty"
	CategorySports      Category = "sports"
	CategoryBooks       Category = "books"
	CategoryOther       Category = "other"
)

func (c Category) Valid() bool {
	for _, info := range categories {
		if info.ID == c {
			return true
		}
	}
	return false
}

type CategoryInfo struct {
	ID           Category `json:"id"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon"`
	DisplayOrder int      `json:"displayOrder"`
	ProductCount int      `json:"productCount"`
}

var categories = []CategoryInfo{
	{ID: CategoryFashion, Name: "Fashion", Icon: "👗", DisplayOrder: 1},
	{ID: CategoryFood, Name: "Food", Icon: "🥗", DisplayOrder: 2},
	{ID: CategoryHome, Name: "Home", Icon: "🏠", DisplayOrder: 3},
	{ID: CategoryElectronics, Name: "Electronics", Icon: "📱", DisplayOrder: 4},
	{ID: CategoryBeauty, Name: "Beauty", Icon: "💄", DisplayOrder: 5},
	{ID: CategorySports, Name: "Sports", Icon: "⚽", DisplayOrder: 6},
	{ID: CategoryBooks, Name: "Books", Icon: "📚", DisplayOrder: 7},
	{ID: CategoryOther, Name: "Other", Icon: "🌱", DisplayOrder: 8},
}

// Categories returns a fresh copy of the fixed category list in display
// order, with zero counts.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

type StockStatus string

const (
	InStock    StockStatus = "in_stock"
	LowStock   StockStatus = "low_stock"
	OutOfStock StockStatus = "out_of_stock"
)

func (s StockStatus) Valid() bool {
	return s == InStock || s == LowStock || s == OutOfStock
}

type Brand struct {
	Name                         string   `json:"name"`
	Logo                         string   `json:"logo,omitempty"`
	SustainabilityCertifications []string `json:"sustainabilityCertifications"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type Certification struct {
	Name       string `json:"name"`
	Icon       string `json:"icon,omitempty"`
	VerifiedBy string `json:"verifiedBy,omitempty"`
}

type Sustainability struct {
	CarbonFootprint float64         `json:"carbonFootprint"`
	EcoScore        int             `json:"ecoScore"`
	Certifications  []Certification `json:"certifications"`
	Materials       []string        `json:"materials"`
	Recyclable      bool            `json:"recyclable"`
	Biodegradable   bool            `json:"biodegradable"`
}

type Affiliate struct {
	URL          string  `json:"url"`
	Commission   float64 `json:"commission"`
	TrackingCode string  `json:"trackingCode,omitempty"`
}

type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type Stats struct {
	Views     int64  `json:"views"`
	Clicks    int64  `json:"clicks"`
	Purchases int64  `json:"purchases"`
	Rating    Rating `json:"rating"`
}

// Product is an affiliate listing. Stats only ever grows; everything else
// is set when the catalog is seeded.
type Product struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Description    string         `json:"description" db:"description"`
	Brand          Brand          `json:"brand" db:"brand"`
	Category       Category       `json:"category" db:"category"`
	Images         []Image        `json:"images" db:"images"`
	Price          Price          `json:"price"`
	Sustainability Sustainability `json:"sustainability" db:"sustainability"`
	Affiliate      Affiliate      `json:"affiliate"`
	Stats          Stats          `json:"stats"`
	IsFeatured     bool           `json:"isFeatured" db:"is_featured"`
	IsActive       bool           `json:"isActive" db:"is_active"`
	IsPremiumOnly  bool           `json:"isPremiumOnly" db:"is_premium_only"`
	Tags           []string       `json:"tags" db:"tags"`
	StockStatus    StockStatus    `json:"stockStatus" db:"stock_status"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

const DefaultCurrency = "EUR"

func (p *Product) Validate() error {
	if p.Name == "" || len(p.Name) > 200 {
		return fmt.Errorf("product name must be between 1 and 200 characters")
	}
	if p.Description == "" || len(p.Description) > 2000 {
		return fmt.Errorf("product description must be between 1 and 2000 characters")
	}
	if p.Brand.Name == "" {
		return fmt.Errorf("product brand name is required")
	}
	if !p.Category.Valid() {
		return fmt.Errorf("invalid product category %q", p.Category)
	}
	if p.Price.Amount < 0 {
		return fmt.Errorf("product price must not be negative")
	}
	if p.Sustainability.CarbonFootprint < 0 {
		return fmt.Errorf("product carbon footprint must not be negative")
	}
	if p.Sustainability.EcoScore < 0 || p.Sustainability.EcoScore > 100 {
		return fmt.Errorf("product eco score must be between 0 and 100")
	}
	if p.Affiliate.URL == "" {
		return fmt.Errorf("product affiliate url is required")
	}
	if p.Affiliate.Commission < 0 || p.Affiliate.Commission > 100 {
		return fmt.Errorf("product commission must be between 0 and 100")
	}
	if p.Stats.Rating.Average < 0 || p.Stats.Rating.Average > 5 {
		return fmt.Errorf("product rating must be between 0 and 5")
	}
	if p.StockStatus != "" && !p.StockStatus.Valid() {
		return fmt.Errorf("invalid stock status %q", p.StockStatus)
	}
	return nil
}

// VisibleTo reports whether u may see p. A nil user is anonymous.
func (p *Product) VisibleTo(u *user.User, now time.Time) bool {
	if !p.IsPremiumOnly {
		return true
	}
	return u != nil && u.HasPremium(now)
}

func (p *Product) Clone() *Product {
	c := *p
	c.Brand.SustainabilityCertifications = append([]string(nil), p.Brand.SustainabilityCertifications...)
	c.Images = append([]Image(nil), p.Images...)
	c.Sustainability.Certifications = append([]Certification(nil), p.Sustainability.Certifications...)
	c.Sustainability.Materials = append([]string(nil), p.Sustainability.Materials...)
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}

type SortBy string

const (
	SortEcoScore  SortBy = "ecoScore"
	SortPriceLow  SortBy = "price_low"
	SortPriceHigh SortBy = "price_high"
	SortPopular   SortBy = "popular"
	SortRating    SortBy = "rating"
)

// Normalize maps unknown values to SortEcoScore.
func (s SortBy) Normalize() SortBy {
	switch s {
	case SortPriceLow, SortPriceHigh, SortPopular, SortRating:
		return s
	}
	return SortEcoScore
}

// Filter narrows marketplace listings. Inactive products are never listed.
type Filter struct {
	Category       Category
	MinEcoScore    *int
	MaxPrice       *float64
	IncludePremium bool
	FeaturedOnly   bool
	Sort           SortBy
	Limit          int
}

// Match applies every filter field except Sort and Limit.
func (f Filter) Match(p *Product) bool {
	if !p.IsActive {
		return false
	}
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinEcoScore != nil && p.Sustainability.EcoScore < *f.MinEcoScore {
		return false
	}
	if f.MaxPrice != nil && p.Price.Amount > *f.MaxPrice {
		return false
	}
	if p.IsPremiumOnly && !f.IncludePremium {
		return false
	}
	if f.FeaturedOnly && !p.IsFeatured {
		return false
	}
	return true
}

// Sort orders products in place. Ties break on name.
func Sort(products []Product, by SortBy) {
	less := func(a, b *Product) (bool, bool) {
		switch by.Normalize() {
		case SortPriceLow:
			return a.Price.Amount < b.Price.Amount, a.Price.Amount == b.Price.Amount
		case SortPriceHigh:
			return a.Price.Amount > b.Price.Amount, a.Price.Amount == b.Price.Amount
		case SortPopular:
			return a.Stats.Views > b.Stats.Views, a.Stats.Views == b.Stats.Views
		case SortRating:
			return a.Stats.Rating.Average > b.Stats.Rating.Average, a.Stats.Rating.Average == b.Stats.Rating.Average
		default:
			return a.Sustainability.EcoScore > b.Sustainability.EcoScore, a.Sustainability.EcoScore == b.Sustainability.EcoScore
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		lt, eq := less(&products[i], &products[j])
		if eq {
			return products[i].Name < products[j].Name
		}
		return lt
	})
}
