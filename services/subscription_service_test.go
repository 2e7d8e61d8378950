package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/events"
	"ecoStepAPI/internal/store/memory"
	"ecoStepAPI/internal/user"
)

const testWebhookSecret = "whsec_test"

func newSubscriptionService(s *memory.Store) (*SubscriptionService, *recordingMailer, *recordingPublisher) {
	svc := NewSubscriptionService(s, 30)
	svc.SetClock(fixedClock)
	svc.SetStripeWebhookSecret(testWebhookSecret)
	mailer := &recordingMailer{}
	pub := &recordingPublisher{}
	svc.SetMailer(mailer)
	svc.SetEventPublisher(pub)
	return svc, mailer, pub
}

func signedStripeEvent(t *testing.T, eventType string, object map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test",
		"object":      "event",
		"api_version": stripe.APIVersion,
		"type":        eventType,
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestSubscriptionStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "free", nil)
	addUser(t, s, "paid", premiumUntil(testNow.Add(36*time.Hour)))
	addUser(t, s, "lapsed", premiumUntil(testNow.Add(-time.Minute)))
	svc, _, _ := newSubscriptionService(s)

	st, err := svc.Status(ctx, "free")
	require.NoError(t, err)
	assert.False(t, st.IsPremium)
	assert.Zero(t, st.DaysRemaining)

	st, err = svc.Status(ctx, "paid")
	require.NoError(t, err)
	assert.True(t, st.IsPremium)
	assert.Equal(t, 2, st.DaysRemaining)

	st, err = svc.Status(ctx, "lapsed")
	require.NoError(t, err)
	assert.False(t, st.IsPremium)
	assert.NotNil(t, st.SubscriptionEndDate)
}

type stubGateway struct {
	canceled []string
}

func (g *stubGateway) CreateCheckoutSession(ctx context.Context, userID, email, customerID string) (*CheckoutSession, error) {
	return &CheckoutSession{ID: "cs_" + userID, URL: "https://checkout.example/" + userID}, nil
}

func (g *stubGateway) CancelAtPeriodEnd(ctx context.Context, customerID string) error {
	g.canceled = append(g.canceled, customerID)
	return nil
}

func TestCheckoutAndCancel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "free", nil)
	addUser(t, s, "paid", func(u *user.User) {
		u.GrantPremium(testNow.AddDate(0, 0, 5))
		u.StripeCustomerID = "cus_paid"
	})
	svc, _, _ := newSubscriptionService(s)

	_, err := svc.CreateCheckout(ctx, "free")
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	gw := &stubGateway{}
	svc.SetGateway(gw)

	sess, err := svc.CreateCheckout(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, "cs_free", sess.ID)

	_, err = svc.CreateCheckout(ctx, "paid")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.Cancel(ctx, "free")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	st, err := svc.Cancel(ctx, "paid")
	require.NoError(t, err)
	assert.True(t, st.IsPremium)
	assert.Equal(t, []string{"cus_paid"}, gw.canceled)
}

type stubPaddle struct {
	lastPrice string
}

func (p *stubPaddle) ListPrices(ctx context.Context) ([]Price, error) {
	return []Price{{ID: "pri_month", Amount: "499", Currency: "EUR", Interval: "month"}}, nil
}

func (p *stubPaddle) CreateTransaction(ctx context.Context, userID, priceID string) (*CheckoutSession, error) {
	p.lastPrice = priceID
	return &CheckoutSession{ID: "txn_" + userID}, nil
}

func TestPaddleCheckout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "free", nil)
	addUser(t, s, "paid", func(u *user.User) { u.GrantPremium(testNow.AddDate(0, 0, 5)) })
	svc, _, _ := newSubscriptionService(s)

	_, err := svc.PaddlePrices(ctx)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	p := &stubPaddle{}
	svc.SetPaddleCheckout(p)

	prices, err := svc.PaddlePrices(ctx)
	require.NoError(t, err)
	require.Len(t, prices, 1)

	sess, err := svc.CreatePaddleCheckout(ctx, "free", "pri_month")
	require.NoError(t, err)
	assert.Equal(t, "txn_free", sess.ID)
	assert.Equal(t, "pri_month", p.lastPrice)

	_, err = svc.CreatePaddleCheckout(ctx, "paid", "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	_, err = svc.CreatePaddleCheckout(ctx, "ghost", "")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStripeWebhookLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "u1", nil)
	svc, mailer, pub := newSubscriptionService(s)

	payload, sig := signedStripeEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": "u1",
		"customer":            "cus_1",
	})
	require.NoError(t, svc.HandleStripeWebhook(ctx, payload, sig))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.HasPremium(testNow))
	assert.Equal(t, testNow.AddDate(0, 0, 30), *u.PremiumUntil)
	assert.Equal(t, "cus_1", u.StripeCustomerID)

	periodEnd := testNow.AddDate(0, 2, 0).Truncate(time.Second)
	payload, sig = signedStripeEvent(t, "customer.subscription.updated", map[string]any{
		"id":                 "sub_1",
		"object":             "subscription",
		"status":             "active",
		"customer":           "cus_1",
		"current_period_end": periodEnd.Unix(),
	})
	require.NoError(t, svc.HandleStripeWebhook(ctx, payload, sig))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, periodEnd.Equal(*u.PremiumUntil))

	payload, sig = signedStripeEvent(t, "invoice.payment_failed", map[string]any{
		"id":       "in_1",
		"object":   "invoice",
		"customer": "cus_1",
	})
	require.NoError(t, svc.HandleStripeWebhook(ctx, payload, sig))
	assert.Equal(t, []string{"u1@example.com"}, mailer.failed)

	payload, sig = signedStripeEvent(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"object":   "subscription",
		"status":   "canceled",
		"customer": "cus_1",
	})
	require.NoError(t, svc.HandleStripeWebhook(ctx, payload, sig))

	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.IsPremium)
	assert.Nil(t, u.PremiumUntil)
	assert.Equal(t, []string{"u1@example.com"}, mailer.canceled)

	for _, typ := range pub.types() {
		assert.Equal(t, events.PremiumChanged, typ)
	}
	assert.Len(t, pub.types(), 4)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	s := newTestStore(t)
	svc, _, _ := newSubscriptionService(s)

	payload, _ := signedStripeEvent(t, "checkout.session.completed", map[string]any{"id": "cs_1"})
	err := svc.HandleStripeWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestStripeWebhookIgnoresUnknownUser(t *testing.T) {
	s := newTestStore(t)
	svc, _, _ := newSubscriptionService(s)

	payload, sig := signedStripeEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": "ghost",
	})
	assert.NoError(t, svc.HandleStripeWebhook(context.Background(), payload, sig))
}

func paddleEvent(t *testing.T, eventType string, data map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event_id":    "evt_01",
		"event_type":  eventType,
		"occurred_at": testNow.Format(time.RFC3339),
		"data":        data,
	})
	require.NoError(t, err)
	return body
}

func TestPaddleEvents(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "u1", nil)
	svc, mailer, _ := newSubscriptionService(s)
	custom := map[string]any{"userId": "u1"}

	require.NoError(t, svc.HandlePaddleEvent(ctx, paddleEvent(t, "transaction.paid", map[string]any{
		"id":          "txn_01",
		"custom_data": custom,
	})))
	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.HasPremium(testNow))

	endsAt := testNow.AddDate(0, 1, 0)
	require.NoError(t, svc.HandlePaddleEvent(ctx, paddleEvent(t, "subscription.updated", map[string]any{
		"id":          "sub_01",
		"status":      "active",
		"custom_data": custom,
		"current_billing_period": map[string]any{
			"starts_at": testNow.Format(time.RFC3339),
			"ends_at":   endsAt.Format(time.RFC3339),
		},
	})))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, endsAt.Equal(*u.PremiumUntil))

	require.NoError(t, svc.HandlePaddleEvent(ctx, paddleEvent(t, "transaction.payment_failed", map[string]any{
		"id":          "txn_02",
		"custom_data": custom,
	})))
	assert.Len(t, mailer.failed, 1)

	require.NoError(t, svc.HandlePaddleEvent(ctx, paddleEvent(t, "subscription.canceled", map[string]any{
		"id":          "sub_01",
		"status":      "canceled",
		"custom_data": custom,
	})))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.IsPremium)

	assert.NoError(t, svc.HandlePaddleEvent(ctx, paddleEvent(t, "transaction.paid", map[string]any{
		"id":          "txn_03",
		"custom_data": map[string]any{"userId": "ghost"},
	})))

	err = svc.HandlePaddleEvent(ctx, []byte("{"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestExpireLapsed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	addUser(t, s, "lapsed", premiumUntil(testNow.Add(-time.Hour)))
	addUser(t, s, "paid", premiumUntil(testNow.Add(time.Hour)))
	svc, _, pub := newSubscriptionService(s)

	n, err := svc.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []events.Type{events.PremiumChanged}, pub.types())

	u, err := s.GetUser(ctx, "lapsed")
	require.NoError(t, err)
	assert.False(t, u.IsPremium)
	assert.NotNil(t, u.PremiumUntil)

	n, err = svc.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
