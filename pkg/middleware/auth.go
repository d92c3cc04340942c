package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/logger"
)

// Claims are the JWT claims issued by the external identity provider.
// The buyer is identified by user_id, falling back to sub.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// BuyerID returns the authenticated principal.
func (c *Claims) BuyerID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// JWTValidator verifies HMAC-signed tokens with secret. When issuer is
// non-empty the iss claim must match it.
func JWTValidator(secret, issuer string) TokenValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(tokenString string) (*Claims, error) {
		claims := &Claims{}
		_, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if claims.BuyerID() == "" {
			return nil, fmt.Errorf("token has no subject")
		}
		return claims, nil
	}
}

// SignToken issues an HS256 token for buyerID. Used by local tooling and
// tests; production tokens come from the identity provider.
func SignToken(secret, issuer, buyerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: buyerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   buyerID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Auth rejects requests without a valid bearer token and stores the buyer ID
// in the request context, re-scoping the request logger with it.
func Auth(validate TokenValidator, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteError(w, r, apperrors.Unauthenticated("missing authorization header"), l)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				httputil.WriteError(w, r, apperrors.Unauthenticated("invalid authorization header format"), l)
				return
			}

			claims, err := validate(parts[1])
			if err != nil {
				l.WarnContext(r.Context(), "rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				httputil.WriteError(w, r, apperrors.Unauthenticated("invalid or expired token"), l)
				return
			}

			ctx := logger.WithBuyerID(r.Context(), claims.BuyerID())
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("buyer_id", claims.BuyerID())))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BuyerIDFromContext returns the buyer authenticated by Auth, or "".
func BuyerIDFromContext(r *http.Request) string {
	return logger.BuyerIDFromContext(r.Context())
}
