package services

import (
	"context"
	"fmt"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
)

type PaddleConfig struct {
	APIKey  string
	Sandbox bool
	PriceID string
	// ReturnURL is where the hosted checkout sends the user afterwards.
	ReturnURL string
}

type Price struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}

// PaddleCheckout is the Paddle side of billing. Entitlement changes
// arrive through HandlePaddleEvent.
type PaddleCheckout interface {
	ListPrices(ctx context.Context) ([]Price, error)
	CreateTransaction(ctx context.Context, userID, priceID string) (*CheckoutSession, error)
}

type PaddleGateway struct {
	client *paddle.SDK
	cfg    PaddleConfig
}

func NewPaddleGateway(cfg PaddleConfig) (*PaddleGateway, error) {
	baseURL := paddle.ProductionBaseURL
	if cfg.Sandbox {
		baseURL = paddle.SandboxBaseURL
	}
	client, err := paddle.New(cfg.APIKey, paddle.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}
	return &PaddleGateway{client: client, cfg: cfg}, nil
}

func (g *PaddleGateway) ListPrices(ctx context.Context) ([]Price, error) {
	collection, err := g.client.ListPrices(ctx, &paddle.ListPricesRequest{
		Status: []string{string(paddle.StatusActive)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list prices: %w", err)
	}

	var prices []Price
	for {
		res := collection.Next(ctx)
		if !res.Ok() {
			if err := res.Err(); err != nil {
				return nil, fmt.Errorf("failed to iterate prices: %w", err)
			}
			break
		}

		p := res.Value()
		interval := ""
		if p.BillingCycle != nil {
			interval = string(p.BillingCycle.Interval)
		}
		prices = append(prices, Price{
			ID:          p.ID,
			ProductID:   p.ProductID,
			Description: p.Description,
			Amount:      p.UnitPrice.Amount,
			Currency:    string(p.UnitPrice.CurrencyCode),
			Interval:    interval,
		})
	}
	return prices, nil
}

// CreateTransaction opens an automatically collected transaction. The
// user id rides in custom data so webhooks can find the user.
func (g *PaddleGateway) CreateTransaction(ctx context.Context, userID, priceID string) (*CheckoutSession, error) {
	if priceID == "" {
		priceID = g.cfg.PriceID
	}

	req := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{
			*paddle.NewCreateTransactionItemsCatalogItem(&paddle.CatalogItem{
				Quantity: 1,
				PriceID:  priceID,
			}),
		},
		CustomData:     paddle.CustomData{"userId": userID},
		CollectionMode: paddle.PtrTo(paddle.CollectionModeAutomatic),
	}
	if g.cfg.ReturnURL != "" {
		req.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(g.cfg.ReturnURL)}
	}

	tx, err := g.client.CreateTransaction(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	host := "checkout"
	if g.cfg.Sandbox {
		host = "sandbox-checkout"
	}
	return &CheckoutSession{
		ID:  tx.ID,
		URL: fmt.Sprintf("https://%s.paddle.com/checkout/custom?_ptxn=%s", host, tx.ID),
	}, nil
}
