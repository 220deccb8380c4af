package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "pairchat"

	// TokenQueryParam is checked when no Authorization header is present,
	// since browsers can't set headers on websocket upgrades.
	TokenQueryParam = "token"
)

// TokenClient authenticates HS256 bearer tokens whose subject is the identity.
type TokenClient struct {
	secret []byte
	now    func() time.Time
}

func NewTokenClient(secret []byte) *TokenClient {
	return &TokenClient{secret: secret, now: time.Now}
}

// Issue signs a token for identity, valid for ttl.
func (c *TokenClient) Issue(identity string, ttl time.Duration) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

func (c *TokenClient) Auth(r *http.Request) (string, error) {
	raw := bearer(r)
	if raw == "" {
		return "", fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}
	return c.Validate(raw)
}

// Validate checks signature, issuer and expiry, and returns the subject.
func (c *TokenClient) Validate(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, jwt.ErrSignatureInvalid)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, errors.New("empty subject"))
	}
	return claims.Subject, nil
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		const prefix = "Bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):])
		}
		return ""
	}
	return r.URL.Query().Get(TokenQueryParam)
}
