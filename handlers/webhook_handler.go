package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/pkg/logger"
	"ecoStepAPI/services"
)

const (
	maxWebhookBytes = int64(65536)
	svixTolerance   = 5 * time.Minute
)

type WebhookHandler struct {
	userService         *services.UserService
	subscriptionService *services.SubscriptionService
	clerkSecret         string
	paddleSecret        string
	now                 func() time.Time
}

func NewWebhookHandler(userService *services.UserService, subscriptionService *services.SubscriptionService, clerkSecret, paddleSecret string) *WebhookHandler {
	return &WebhookHandler{
		userService:         userService,
		subscriptionService: subscriptionService,
		clerkSecret:         clerkSecret,
		paddleSecret:        paddleSecret,
		now:                 time.Now,
	}
}

type clerkEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkUserData struct {
	ID                    string              `json:"id"`
	FirstName             string              `json:"first_name"`
	LastName              string              `json:"last_name"`
	Username              string              `json:"username"`
	ImageURL              string              `json:"image_url"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	EmailAddresses        []clerkEmailAddress `json:"email_addresses"`
}

func (d clerkUserData) primaryEmail() string {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (d clerkUserData) displayName() string {
	name := strings.TrimSpace(d.FirstName + " " + d.LastName)
	if name == "" {
		name = d.Username
	}
	return name
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verifySvix(r.Header, body); err != nil {
		logger.Warn().Err(err).Msg("invalid clerk webhook signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	logger.Info().Str("event", event.Type).Msg("received clerk webhook")

	switch event.Type {
	case "user.created":
		err = h.handleUserCreated(ctx, event.Data)
	case "user.updated":
		err = h.handleUserUpdated(ctx, event.Data)
	case "user.deleted":
		err = h.handleUserDeleted(ctx, event.Data)
	default:
		logger.Debug().Str("event", event.Type).Msg("unhandled clerk webhook")
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var d clerkUserData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid user payload", err)
	}

	u, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:  d.ID,
		Email:    d.primaryEmail(),
		Name:     d.displayName(),
		ImageURL: d.ImageURL,
	})
	if err != nil {
		return err
	}

	logger.Info().Str("user_id", u.ID).Str("clerk_id", d.ID).Msg("user created from clerk")
	return nil
}

func (h *WebhookHandler) handleUserUpdated(ctx context.Context, data json.RawMessage) error {
	var d clerkUserData
	if err := json.Unmarshal(data, &d); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid user payload", err)
	}

	req := &user.UpdateProfileRequest{}
	if name := d.displayName(); name != "" {
		req.Name = &name
	}
	if email := d.primaryEmail(); email != "" {
		req.Email = &email
	}
	if d.ImageURL != "" {
		req.ImageURL = &d.ImageURL
	}

	_, err := h.userService.UpdateProfileByClerkID(ctx, d.ID, req)
	return err
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var d struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid user payload", err)
	}

	err := h.userService.DeleteUserByClerkID(ctx, d.ID)
	if apperr.Is(err, apperr.KindNotFound) {
		logger.Warn().Str("clerk_id", d.ID).Msg("delete for unknown clerk user ignored")
		return nil
	}
	return err
}

// verifySvix checks the svix-signature header: base64 HMAC-SHA256 over
// "id.timestamp.body" keyed by the decoded whsec_ secret. The header may
// carry several space separated signatures.
func (h *WebhookHandler) verifySvix(header http.Header, body []byte) error {
	if h.clerkSecret == "" {
		return fmt.Errorf("clerk webhook secret is not configured")
	}

	id := header.Get("svix-id")
	ts := header.Get("svix-timestamp")
	sigs := header.Get("svix-signature")
	if id == "" || ts == "" || sigs == "" {
		return fmt.Errorf("missing svix headers")
	}

	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid svix timestamp: %w", err)
	}
	sent := time.Unix(sec, 0)
	if d := h.now().Sub(sent); d > svixTolerance || d < -svixTolerance {
		return fmt.Errorf("svix timestamp outside tolerance")
	}

	expected, err := svixSignature(h.clerkSecret, id, ts, body)
	if err != nil {
		return err
	}

	for _, sig := range strings.Fields(sigs) {
		version, value, ok := strings.Cut(sig, ",")
		if ok && version == "v1" && hmac.Equal([]byte(value), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}

func svixSignature(secret, id, ts string, body []byte) (string, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return "", fmt.Errorf("invalid clerk webhook secret: %w", err)
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", id, ts)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// HandleStripeWebhook processes events sent by Stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Error reading request body")
		return
	}

	if err := h.subscriptionService.HandleStripeWebhook(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// HandlePaddleWebhook verifies the Paddle-Signature header before the
// event is applied. The verifier reads the body itself, so it is buffered
// and restored first.
func (h *WebhookHandler) HandlePaddleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if h.paddleSecret == "" {
		logger.Error().Msg("paddle webhook secret is not configured")
		respondWithError(w, http.StatusInternalServerError, "Configuration error")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Unable to read body")
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	valid, err := paddle.NewWebhookVerifier(h.paddleSecret).Verify(r)
	if err != nil || !valid {
		logger.Warn().Err(err).Msg("invalid paddle webhook signature")
		respondWithError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	if err := h.subscriptionService.HandlePaddleEvent(ctx, body); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
