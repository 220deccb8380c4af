package auth

import (
	"fmt"
	"net/http"
	"strings"
)

// CookieName carries the identity for MockClient.
const CookieName = "x-uid"

// MockClient trusts the x-uid cookie. For development only.
type MockClient struct{}

func (c *MockClient) Auth(r *http.Request) (string, error) {
	var uid string
	if c, err := r.Cookie(CookieName); err == nil {
		uid = strings.TrimSpace(c.Value)
	}
	if uid == "" {
		return "", fmt.Errorf("%w: empty %s from cookie", ErrUnauthenticated, CookieName)
	}
	return uid, nil
}
