package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"healthpass/pkg/domain"
	domainerrors "healthpass/pkg/domain-errors"
)

type callerKey struct{}

// Claims is the token payload accepted by the API. The subject carries the
// caller identity used for all authorization decisions.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenValidator verifies bearer tokens signed with the shared HMAC key.
type TokenValidator struct {
	signingKey []byte
}

func NewTokenValidator(signingKey string) *TokenValidator {
	return &TokenValidator{signingKey: []byte(signingKey)}
}

// Validate parses and verifies a raw token, returning the caller identity.
func (v *TokenValidator) Validate(raw string) (domain.Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domainerrors.New(domainerrors.CodeUnauthorized, "unexpected signing method")
		}
		return v.signingKey, nil
	})
	if err != nil {
		return "", domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return "", domainerrors.New(domainerrors.CodeUnauthorized, "invalid token")
	}
	return domain.Identity(claims.Subject), nil
}

// Issue mints a token for the given identity. Used by the CLI bootstrap and
// by handler tests.
func (v *TokenValidator) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(identity),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.signingKey)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func RequireAuth(validator *TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeUnauthorized(w)
				return
			}

			caller, err := validator.Validate(raw)
			if err != nil {
				log.WarnContext(r.Context(), "rejected token", "error", err)
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerID returns the authenticated caller identity, or the zero
// identity when the request was not authenticated.
func GetCallerID(ctx context.Context) domain.Identity {
	caller, _ := ctx.Value(callerKey{}).(domain.Identity)
	return caller
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"UNAUTHORIZED","message":"missing or invalid bearer token"}`))
}
