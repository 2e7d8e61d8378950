package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoStepAPI/internal/store/memory"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/services"
)

var testSecret = []byte("test-secret")

func echoUserID(w http.ResponseWriter, r *http.Request) {
	id, _ := GetUserID(r.Context())
	w.Write([]byte(id))
}

func TestLocalJWTMiddlewareProvisionsUser(t *testing.T) {
	store := memory.New(time.UTC)
	users := services.NewUserService(store)
	h := LocalJWTMiddleware(testSecret, "ecostep", users)(http.HandlerFunc(echoUserID))

	token, err := IssueLocalToken(testSecret, "ecostep", services.Identity{Subject: "sub-1", Email: "a@example.com", Name: "Ana"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	u, err := store.GetUserByClerkID(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, rec.Body.String())
	assert.Equal(t, "Ana", u.Name)
}

func TestAuthMiddlewareRejects(t *testing.T) {
	store := memory.New(time.UTC)
	users := services.NewUserService(store)
	h := LocalJWTMiddleware(testSecret, "ecostep", users)(http.HandlerFunc(echoUserID))

	suspended := user.New("u-s", "s@example.com", "S", time.Now())
	suspended.ClerkID = "sub-suspended"
	suspended.AccountStatus = user.StatusSuspended
	require.NoError(t, store.CreateUser(context.Background(), suspended))

	sign := func(secret []byte, issuer, sub string, ttl time.Duration) string {
		tok, err := IssueLocalToken(secret, issuer, services.Identity{Subject: sub}, ttl)
		require.NoError(t, err)
		return "Bearer " + tok
	}

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"wrong secret", sign([]byte("other"), "ecostep", "sub-1", time.Hour), http.StatusUnauthorized},
		{"wrong issuer", sign(testSecret, "someone-else", "sub-1", time.Hour), http.StatusUnauthorized},
		{"expired", sign(testSecret, "ecostep", "sub-1", -time.Minute), http.StatusUnauthorized},
		{"suspended account", sign(testSecret, "ecostep", "sub-suspended", time.Hour), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	store := memory.New(time.UTC)
	users := services.NewUserService(store)
	h := OptionalAuthMiddleware(LocalVerifier(testSecret, "ecostep"), users, true)(http.HandlerFunc(echoUserID))

	token, err := IssueLocalToken(testSecret, "ecostep", services.Identity{Subject: "sub-1", Email: "a@example.com"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   string
		wantUser bool
	}{
		{"missing header", "", false},
		{"not bearer", "Token abc", false},
		{"garbage", "Bearer abc", false},
		{"valid", "Bearer " + token, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantUser, rec.Body.String() != "")
		})
	}
}

func TestBasicAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		user, pass string
		setUser    string
		setPass    string
		status     int
	}{
		{"valid", "admin", "pw", "admin", "pw", http.StatusOK},
		{"wrong password", "admin", "pw", "admin", "nope", http.StatusUnauthorized},
		{"not configured", "", "", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.SetBasicAuth(tt.setUser, tt.setPass)
			rec := httptest.NewRecorder()
			BasicAuthMiddleware(tt.user, tt.pass)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(1, 2)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("1.1.1.1"))
	assert.Equal(t, http.StatusOK, hit("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("1.1.1.1"))
	assert.Equal(t, http.StatusOK, hit("2.2.2.2"))

	l.prune(-time.Second)
	assert.Empty(t, l.visitors)
}

func TestMonitorMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MonitorMiddleware)
	r.HandleFunc("/challenges/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/challenges/{id}", routeTemplate(r))
		w.WriteHeader(http.StatusForbidden)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/challenges/abc", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
