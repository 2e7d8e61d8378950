package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/user"
)

var testClerkSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("clerk-test-secret"))

const testPaddleSecret = "pdl_ntfset_test_secret"

func clerkPayload(eventType, clerkID, firstName string) []byte {
	switch eventType {
	case "user.deleted":
		return []byte(fmt.Sprintf(`{"type":%q,"object":"event","data":{"id":%q,"deleted":true}}`, eventType, clerkID))
	default:
		return []byte(fmt.Sprintf(`{
			"type": %q,
			"object": "event",
			"data": {
				"id": %q,
				"first_name": %q,
				"last_name": "User",
				"username": "testuser",
				"image_url": "https://example.com/image.jpg",
				"primary_email_address_id": "email_2",
				"email_addresses": [
					{"id": "email_1", "email_address": "old@example.com"},
					{"id": "email_2", "email_address": "test.user@example.com"}
				]
			}
		}`, eventType, clerkID, firstName))
	}
}

func signedClerkRequest(t *testing.T, body []byte, sentAt time.Time) *http.Request {
	t.Helper()
	id := "msg_test"
	ts := strconv.FormatInt(sentAt.Unix(), 10)
	sig, err := svixSignature(testClerkSecret, id, ts, body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", id)
	req.Header.Set("svix-timestamp", ts)
	req.Header.Set("svix-signature", "v1,bm9wZQ== v1,"+sig)
	return req
}

func TestClerkWebhookLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	send := func(body []byte) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, signedClerkRequest(t, body, time.Now()))
		return rec
	}

	rec := send(clerkPayload("user.created", "user_abc", "Test"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	u, err := env.store.GetUserByClerkID(ctx, "user_abc")
	require.NoError(t, err)
	assert.Equal(t, "test.user@example.com", u.Email)
	assert.Equal(t, "Test User", u.Name)

	// Redelivery is idempotent.
	rec = send(clerkPayload("user.created", "user_abc", "Test"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(clerkPayload("user.updated", "user_abc", "Updated"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u, err = env.store.GetUserByClerkID(ctx, "user_abc")
	require.NoError(t, err)
	assert.Equal(t, "Updated User", u.Name)

	rec = send(clerkPayload("user.deleted", "user_abc", ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u, err = env.store.GetUserByClerkID(ctx, "user_abc")
	require.NoError(t, err)
	assert.Equal(t, user.StatusDeleted, u.AccountStatus)

	rec = send(clerkPayload("user.deleted", "user_unknown", ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = send(clerkPayload("user.updated", "user_unknown", "X"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClerkWebhookRejectsBadSignatures(t *testing.T) {
	env := newTestEnv(t)
	body := clerkPayload("user.created", "user_evil", "Evil")

	tampered := signedClerkRequest(t, body, time.Now())
	tampered.Body = io.NopCloser(bytes.NewReader(append(body, ' ')))

	stale := signedClerkRequest(t, body, time.Now().Add(-time.Hour))

	unsigned := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))

	for name, req := range map[string]*http.Request{"tampered": tampered, "stale": stale, "unsigned": unsigned} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	_, err := env.store.GetUserByClerkID(context.Background(), "user_evil")
	assert.Error(t, err)
}

func signedPaddleRequest(body []byte) *http.Request {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(testPaddleSecret))
	mac.Write([]byte(ts + ":"))
	mac.Write(body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", bytes.NewReader(body))
	req.Header.Set("Paddle-Signature", "ts="+ts+";h1="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestPaddleWebhookGrantsPremium(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "u1")

	body := []byte(`{
		"event_id": "evt_1",
		"event_type": "transaction.paid",
		"occurred_at": "2025-04-02T15:00:00Z",
		"data": {"id": "txn_1", "status": "paid", "custom_data": {"userId": "u1"}}
	}`)

	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, signedPaddleRequest(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	u, err := env.store.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, u.HasPremium(time.Now()))

	forged := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", bytes.NewReader(body))
	forged.Header.Set("Paddle-Signature", "ts=1;h1=deadbeef")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, forged)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{"id":"evt_1"}`)))
	req.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
