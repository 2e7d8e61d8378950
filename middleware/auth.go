package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	clerkjwt "github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/golang-jwt/jwt/v5"

	"ecoStepAPI/internal/apperr"
	"ecoStepAPI/internal/user"
	"ecoStepAPI/pkg/logger"
	"ecoStepAPI/services"
)

type contextKey string

const UserIDKey contextKey = "userID"
const ClerkIDKey contextKey = "clerkID"

// PrincipalResolver is satisfied by services.UserService.
type PrincipalResolver interface {
	ResolvePrincipal(ctx context.Context, id services.Identity, provision bool) (*user.User, error)
}

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier func(ctx context.Context, token string) (services.Identity, error)

// ClerkVerifier checks Clerk session tokens. The Clerk key must be set
// globally with clerk.SetKey before the first request.
func ClerkVerifier(ctx context.Context, token string) (services.Identity, error) {
	claims, err := clerkjwt.Verify(ctx, &clerkjwt.VerifyParams{Token: token})
	if err != nil {
		return services.Identity{}, err
	}
	return services.Identity{Subject: claims.Subject}, nil
}

type LocalClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// LocalVerifier checks HS256 tokens signed with secret.
func LocalVerifier(secret []byte, issuer string) TokenVerifier {
	return func(ctx context.Context, token string) (services.Identity, error) {
		claims := &LocalClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil {
			return services.Identity{}, err
		}
		if claims.Subject == "" {
			return services.Identity{}, errors.New("token has no subject")
		}
		return services.Identity{Subject: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
	}
}

// IssueLocalToken signs a token LocalVerifier accepts.
func IssueLocalToken(secret []byte, issuer string, id services.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := LocalClaims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// AuthMiddleware verifies the bearer token and resolves it to an active
// user. provision creates unknown users on first sight; Clerk users are
// created by the Clerk webhook instead.
func AuthMiddleware(verify TokenVerifier, users PrincipalResolver, provision bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondWithError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == authHeader {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization format. Use 'Bearer <token>'")
				return
			}

			id, err := verify(r.Context(), token)
			if err != nil {
				logger.Debug().Err(err).Msg("token verification failed")
				respondWithError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			u, err := users.ResolvePrincipal(r.Context(), id, provision)
			if err != nil {
				respondWithError(w, apperr.HTTPStatus(err), apperr.Message(err))
				return
			}

			ctx := context.WithValue(r.Context(), ClerkIDKey, id.Subject)
			ctx = context.WithValue(ctx, UserIDKey, u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware attaches the caller when the request carries a
// valid bearer token and serves it anonymously otherwise.
func OptionalAuthMiddleware(verify TokenVerifier, users PrincipalResolver, provision bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || token == r.Header.Get("Authorization") {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verify(r.Context(), token)
			if err != nil {
				logger.Debug().Err(err).Msg("optional token rejected, continuing anonymously")
				next.ServeHTTP(w, r)
				return
			}
			u, err := users.ResolvePrincipal(r.Context(), id, provision)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ClerkIDKey, id.Subject)
			ctx = context.WithValue(ctx, UserIDKey, u.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClerkAuthMiddleware(users PrincipalResolver) func(http.Handler) http.Handler {
	return AuthMiddleware(ClerkVerifier, users, false)
}

func LocalJWTMiddleware(secret []byte, issuer string, users PrincipalResolver) func(http.Handler) http.Handler {
	return AuthMiddleware(LocalVerifier(secret, issuer), users, true)
}

// GetClerkID extracts the identity-provider subject from context
func GetClerkID(ctx context.Context) (string, bool) {
	clerkID, ok := ctx.Value(ClerkIDKey).(string)
	return clerkID, ok
}

// GetUserID extracts internal user ID from context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// WithUserID is used by tests and internal callers that bypass auth.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
