// Package middleware contains the HTTP middleware stack.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leekyio/api/pkg/apierror"
	"github.com/leekyio/api/pkg/domain/shared"
	"github.com/leekyio/api/pkg/logger"
)

type contextKey string

// OwnerIDKey carries the authenticated owner's ID through the request
// context.
const OwnerIDKey contextKey = "owner_id"

// AuthConfig holds bearer-token verification settings. Token issuance is
// owned by the identity service; this API only verifies.
type AuthConfig struct {
	Secret string
	Issuer string
}

// Auth verifies the bearer token and injects the owner ID into the
// request context. Every data route sits behind this middleware; owner
// scoping in the services depends on it.
func Auth(cfg AuthConfig, log *logger.Logger) func(http.Handler) http.Handler {
	authLog := log.With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierror.Unauthorized("Missing bearer token").WriteJSON(w)
				return
			}

			ownerID, err := verifyToken(token, cfg)
			if err != nil {
				authLog.Warn("token rejected", "error", err)
				apierror.Unauthorized("Invalid token").WriteJSON(w)
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return header[len(prefix):]
}

func verifyToken(tokenString string, cfg AuthConfig) (shared.ID, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return shared.ID{}, fmt.Errorf("parse token: %w", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return shared.ID{}, fmt.Errorf("token has no subject")
	}

	ownerID, err := shared.IDFromString(subject)
	if err != nil {
		return shared.ID{}, fmt.Errorf("invalid subject: %w", err)
	}
	return ownerID, nil
}

// GetOwnerID extracts the authenticated owner ID from context.
func GetOwnerID(ctx context.Context) (shared.ID, bool) {
	id, ok := ctx.Value(OwnerIDKey).(shared.ID)
	return id, ok
}

// MustGetOwnerID extracts the owner ID or panics. Only for handlers
// registered behind Auth.
func MustGetOwnerID(ctx context.Context) shared.ID {
	id, ok := GetOwnerID(ctx)
	if !ok {
		panic("owner ID missing from context; handler registered outside auth middleware")
	}
	return id
}
