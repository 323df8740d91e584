package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"handyhub/internal/config"
	"handyhub/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Auth verifies the externally-issued session token and hands the claims to
// the handlers as a models.Identity. Tokens are accepted from the session
// cookie or an Authorization: Bearer header; the service never signs its own.
type Auth struct {
	secret     []byte
	cookieName string
}

func NewAuth(cfg config.AuthConfig) *Auth {
	return &Auth{
		secret:     []byte(cfg.JWTSecret),
		cookieName: cfg.CookieName,
	}
}

type identityClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var errNoToken = errors.New("missing auth token")

type ctxKey int

const identityKey ctxKey = 0

// IdentityFrom returns the verified caller identity stored by the middleware.
func IdentityFrom(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

// Wrap rejects requests without a valid token and stores the identity in the
// request context for the handler.
func (a *Auth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Auth) authenticate(r *http.Request) (models.Identity, error) {
	raw, err := a.extractToken(r)
	if err != nil {
		return models.Identity{}, err
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return models.Identity{}, errors.New("invalid token")
	}

	identity := models.Identity{
		Username: claims.Username,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}
	if identity.Username == "" || identity.Role == "" {
		return models.Identity{}, errors.New("token missing identity claims")
	}

	switch identity.Role {
	case models.RoleCustomer, models.RoleProvider, models.RoleAdmin:
	default:
		return models.Identity{}, fmt.Errorf("unknown role %q", identity.Role)
	}

	return identity, nil
}

func (a *Auth) extractToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if after, ok := strings.CutPrefix(header, "Bearer "); ok && after != "" {
		return after, nil
	}

	return "", errNoToken
}
