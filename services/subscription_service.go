package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/events"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/pkg/logger"
)

const (
	ProviderStripe = "stripe"
	ProviderPaddle = "paddle"
	ProviderSystem = "system"
)

// BillingMailer is satisfied by mail.Mailer.
type BillingMailer interface {
	SendPaymentFailed(ctx context.Context, to, name string) error
	SendSubscriptionCanceled(ctx context.Context, to, name string) error
}

type SubscriptionService struct {
	store               repository.Store
	gateway             BillingGateway
	paddle              PaddleCheckout
	mailer              BillingMailer
	events              EventPublisher
	stripeWebhookSecret string
	premiumDays         int
	now                 Clock
}

func NewSubscriptionService(store repository.Store, premiumDays int) *SubscriptionService {
	if premiumDays <= 0 {
		premiumDays = 30
	}
	return &SubscriptionService{store: store, premiumDays: premiumDays, now: time.Now}
}

func (s *SubscriptionService) SetClock(c Clock) { s.now = c }
func (s *SubscriptionService) SetGateway(g BillingGateway) { s.gateway = g }
func (s *SubscriptionService) SetPaddleCheckout(p PaddleCheckout) { s.paddle = p }
func (s *SubscriptionService) SetMailer(m BillingMailer) { s.mailer = m }
func (s *SubscriptionService) SetEventPublisher(p EventPublisher) { s.events = p }
func (s *SubscriptionService) SetStripeWebhookSecret(secret string) { s.stripeWebhookSecret = secret }

type SubscriptionStatus struct {
	IsPremium           bool       `json:"isPremium"`
	SubscriptionEndDate *time.Time `json:"subscriptionEndDate"`
	DaysRemaining       int        `json:"daysRemaining"`
	PaymentFailed       bool       `json:"paymentFailed"`
}

// Status reports the effective entitlement: a stored flag with a past
// end date is reported as not premium.
func (s *SubscriptionService) Status(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.statusOf(u), nil
}

func (s *SubscriptionService) statusOf(u *user.User) *SubscriptionStatus {
	now := s.now()
	st := &SubscriptionStatus{
		IsPremium:           u.HasPremium(now),
		SubscriptionEndDate: u.PremiumUntil,
		PaymentFailed:       u.PaymentFailedAt != nil,
	}
	if st.IsPremium {
		st.DaysRemaining = int(math.Ceil(u.PremiumUntil.Sub(now).Hours() / 24))
	}
	return st
}

func (s *SubscriptionService) CreateCheckout(ctx context.Context, userID string) (*CheckoutSession, error) {
	if s.gateway == nil {
		return nil, apperr.Internal("billing is not configured", nil)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.HasPremium(s.now()) {
		return nil, apperr.Conflict("Premium subscription is already active")
	}
	return s.gateway.CreateCheckoutSession(ctx, u.ID, u.Email, u.StripeCustomerID)
}

func (s *SubscriptionService) PaddlePrices(ctx context.Context) ([]Price, error) {
	if s.paddle == nil {
		return nil, apperr.Internal("paddle billing is not configured", nil)
	}
	return s.paddle.ListPrices(ctx)
}

// CreatePaddleCheckout starts a Paddle transaction. An empty priceID
// falls back to the configured plan.
func (s *SubscriptionService) CreatePaddleCheckout(ctx context.Context, userID, priceID string) (*CheckoutSession, error) {
	if s.paddle == nil {
		return nil, apperr.Internal("paddle billing is not configured", nil)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.HasPremium(s.now()) {
		return nil, apperr.Conflict("Premium subscription is already active")
	}
	return s.paddle.CreateTransaction(ctx, u.ID, priceID)
}

// Cancel stops renewal. Access is kept until the current end date.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) (*SubscriptionStatus, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.HasPremium(s.now()) {
		return nil, apperr.Conflict("No active premium subscription")
	}

	if s.gateway != nil && u.StripeCustomerID != "" {
		if err := s.gateway.CancelAtPeriodEnd(ctx, u.StripeCustomerID); err != nil {
			return nil, err
		}
	}

	logger.Info().Str("user_id", userID).Msg("subscription canceled at period end")
	return s.statusOf(u), nil
}

// Grant sets premium until the given time.
func (s *SubscriptionService) Grant(ctx context.Context, userID string, until time.Time, provider, customerID string) error {
	return s.change(ctx, userID, provider, "grant", func(u *user.User) {
		u.GrantPremium(until)
		if customerID != "" {
			u.StripeCustomerID = customerID
		}
	})
}

// Revoke clears premium. clearExpiry drops the end date as well.
func (s *SubscriptionService) Revoke(ctx context.Context, userID, provider string, clearExpiry bool) error {
	return s.change(ctx, userID, provider, "revoke", func(u *user.User) {
		u.RevokePremium(clearExpiry)
	})
}

func (s *SubscriptionService) PaymentFailed(ctx context.Context, userID, provider string) error {
	var email, name string
	err := s.change(ctx, userID, provider, "payment_failed", func(u *user.User) {
		failedAt := s.now()
		u.PaymentFailedAt = &failedAt
		email, name = u.Email, u.Name
	})
	if err != nil {
		return err
	}

	if s.mailer != nil {
		if err := s.mailer.SendPaymentFailed(ctx, email, name); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("failed to send payment failure email")
		}
	}
	return nil
}

func (s *SubscriptionService) change(ctx context.Context, userID, provider, action string, mutate func(u *user.User)) error {
	var payload events.PremiumPayload
	err := s.store.WithinUser(ctx, userID, func(ctx context.Context, tx repository.UserTx) error {
		u := tx.User()
		mutate(u)
		payload = events.PremiumPayload{
			IsPremium:    u.HasPremium(s.now()),
			PremiumUntil: u.PremiumUntil,
			Provider:     provider,
			Reason:       action,
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.PremiumChanges.WithLabelValues(action, provider).Inc()
	logger.Info().Str("user_id", userID).Str("provider", provider).Str("event", action).Bool("premium", payload.IsPremium).Msg("premium entitlement changed")
	publish(ctx, s.events, events.New(events.PremiumChanged, userID, s.now(), payload))
	return nil
}

// ExpireLapsed clears the stored flag of users whose end date passed.
// Reads already treat them as non-premium; this keeps storage tidy.
func (s *SubscriptionService) ExpireLapsed(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.ExpirePremium(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		metrics.PremiumChanges.WithLabelValues("expire", ProviderSystem).Inc()
		publish(ctx, s.events, events.New(events.PremiumChanged, id, now, events.PremiumPayload{
			Provider: ProviderSystem,
			Reason:   "expire",
		}))
	}
	if len(ids) > 0 {
		logger.Info().Int("count", len(ids)).Msg("expired lapsed premium entitlements")
	}
	return len(ids), nil
}

// HandleStripeWebhook verifies and applies one Stripe event. Events for
// unknown users are acknowledged and ignored.
func (s *SubscriptionService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.stripeWebhookSecret == "" {
		return apperr.Internal("stripe webhook secret is not configured", nil)
	}
	event, err := webhook.ConstructEvent(payload, signature, s.stripeWebhookSecret)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid Stripe signature", err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid checkout session payload", err)
		}
		userID := sess.ClientReferenceID
		if userID == "" {
			userID = sess.Metadata["user_id"]
		}
		customerID := ""
		if sess.Customer != nil {
			customerID = sess.Customer.ID
		}
		return s.ignoreUnknown(s.Grant(ctx, userID, s.now().AddDate(0, 0, s.premiumDays), ProviderStripe, customerID))

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid subscription payload", err)
		}
		u, err := s.stripeUser(ctx, sub.Metadata["user_id"], sub.Customer)
		if err != nil {
			return s.ignoreUnknown(err)
		}

		if event.Type == "customer.subscription.deleted" {
			if err := s.Revoke(ctx, u.ID, ProviderStripe, true); err != nil {
				return err
			}
			if s.mailer != nil {
				if err := s.mailer.SendSubscriptionCanceled(ctx, u.Email, u.Name); err != nil {
					logger.Warn().Err(err).Str("user_id", u.ID).Msg("failed to send cancellation email")
				}
			}
			return nil
		}

		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			return s.Grant(ctx, u.ID, time.Unix(sub.CurrentPeriodEnd, 0), ProviderStripe, "")
		}
		return s.Revoke(ctx, u.ID, ProviderStripe, false)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid invoice payload", err)
		}
		u, err := s.stripeUser(ctx, "", inv.Customer)
		if err != nil {
			return s.ignoreUnknown(err)
		}
		return s.PaymentFailed(ctx, u.ID, ProviderStripe)

	default:
		logger.Debug().Str("event", string(event.Type)).Msg("unhandled stripe event")
		return nil
	}
}

func (s *SubscriptionService) stripeUser(ctx context.Context, userID string, customer *stripe.Customer) (*user.User, error) {
	if userID != "" {
		return s.store.GetUser(ctx, userID)
	}
	if customer == nil || customer.ID == "" {
		return nil, apperr.NotFound("Event carries no customer")
	}
	return s.store.GetUserByStripeCustomerID(ctx, customer.ID)
}

type paddleEnvelope struct {
	EventID   string               `json:"event_id"`
	EventType paddle.EventTypeName `json:"event_type"`
	Data      json.RawMessage      `json:"data"`
}

// HandlePaddleEvent applies a verified Paddle notification. The user id
// travels in custom_data.userId.
func (s *SubscriptionService) HandlePaddleEvent(ctx context.Context, body []byte) error {
	var env paddleEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid Paddle payload", err)
	}

	switch env.EventType {
	case paddle.EventTypeNameTransactionPaid:
		var tx paddle.Transaction
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid transaction payload", err)
		}
		userID := customUserID(tx.CustomData)
		return s.ignoreUnknown(s.Grant(ctx, userID, s.now().AddDate(0, 0, s.premiumDays), ProviderPaddle, ""))

	case paddle.EventTypeNameTransactionPaymentFailed:
		var tx paddle.Transaction
		if err := json.Unmarshal(env.Data, &tx); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid transaction payload", err)
		}
		return s.ignoreUnknown(s.PaymentFailed(ctx, customUserID(tx.CustomData), ProviderPaddle))

	case paddle.EventTypeNameSubscriptionUpdated, paddle.EventTypeNameSubscriptionCanceled:
		var sub paddle.Subscription
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid subscription payload", err)
		}
		userID := customUserID(sub.CustomData)

		if env.EventType == paddle.EventTypeNameSubscriptionCanceled {
			return s.ignoreUnknown(s.Revoke(ctx, userID, ProviderPaddle, true))
		}
		if sub.Status != paddle.SubscriptionStatusActive && sub.Status != paddle.SubscriptionStatusTrialing {
			return s.ignoreUnknown(s.Revoke(ctx, userID, ProviderPaddle, false))
		}

		until := s.now().AddDate(0, 0, s.premiumDays)
		if sub.CurrentBillingPeriod != nil {
			end, err := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.EndsAt)
			if err != nil {
				return apperr.Wrap(apperr.KindValidation, "Invalid billing period", err)
			}
			until = end
		}
		return s.ignoreUnknown(s.Grant(ctx, userID, until, ProviderPaddle, ""))

	default:
		logger.Debug().Str("event", string(env.EventType)).Msg("unhandled paddle event")
		return nil
	}
}

func customUserID(data paddle.CustomData) string {
	if data == nil {
		return ""
	}
	id, _ := data["userId"].(string)
	return id
}

func (s *SubscriptionService) ignoreUnknown(err error) error {
	if apperr.Is(err, apperr.KindNotFound) {
		logger.Warn().Err(err).Msg("billing event for unknown user ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply billing event: %w", err)
	}
	return nil
}
