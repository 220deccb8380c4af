// Package auth resolves the identity behind a websocket upgrade request.
package auth

import (
	"errors"
	"net/http"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type Client interface {
	// Auth authenticates the request and returns the caller's identity.
	Auth(r *http.Request) (string, error)
}
