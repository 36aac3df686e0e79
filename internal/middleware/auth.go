package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/nemesis/api/internal/model"
	"github.com/forgo/nemesis/api/pkg/jwt"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	Validate(token string) (*jwt.Claims, error)
}

// AdminKeyHeader carries the service key for external cycle triggers
const AdminKeyHeader = "X-Admin-Key"

// ClaimsKey is the context key for JWT claims
const ClaimsKey contextKey = "claims"

// UserEmailKey is the context key for user email
const UserEmailKey contextKey = "userEmail"

// AdminKeyAuthKey marks a request authenticated by the admin service key
const AdminKeyAuthKey contextKey = "adminKey"

// Auth returns a middleware that validates JWT tokens
func Auth(validator TokenValidator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != nil {
				problem.WriteJSON(w)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				tokenProblem(err).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// AdminAuth admits either a bearer token with the admin role or an
// X-Admin-Key whose bcrypt hash matches keyHash. An empty keyHash disables
// the key path.
func AdminAuth(validator TokenValidator, keyHash string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get(AdminKeyHeader); key != "" {
				if keyHash == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
					model.NewUnauthorizedError("invalid admin key").WriteJSON(w)
					return
				}
				noteCaller(r.Context(), "admin-key")
				ctx := context.WithValue(r.Context(), AdminKeyAuthKey, true)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			token, problem := bearerToken(r)
			if problem != nil {
				problem.WriteJSON(w)
				return
			}

			claims, err := validator.Validate(token)
			if err != nil {
				tokenProblem(err).WriteJSON(w)
				return
			}
			if !claims.IsAdmin() {
				model.NewForbiddenError("admin role required").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) (string, *model.ProblemDetails) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", model.NewUnauthorizedError("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", model.NewUnauthorizedError("invalid authorization header format")
	}
	return parts[1], nil
}

func tokenProblem(err error) *model.ProblemDetails {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return model.NewUnauthorizedError("token expired")
	case errors.Is(err, jwt.ErrInvalidSignature):
		return model.NewUnauthorizedError("invalid token signature")
	default:
		return model.NewUnauthorizedError("invalid token")
	}
}

func withClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	noteCaller(ctx, claims.UserID)
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserID extracts the user ID from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserEmail extracts the user email from context
func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

// GetClaims extracts the JWT claims from context
func GetClaims(ctx context.Context) *jwt.Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims); ok {
		return claims
	}
	return nil
}

// IsAdmin reports whether the request carries admin rights, by role or by key
func IsAdmin(ctx context.Context) bool {
	if viaKey, ok := ctx.Value(AdminKeyAuthKey).(bool); ok && viaKey {
		return true
	}
	claims := GetClaims(ctx)
	return claims != nil && claims.IsAdmin()
}
