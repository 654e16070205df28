package transport

import (
	"context"
	"errors"
)

// ErrNoUserToken is returned when no user token is available.
var ErrNoUserToken = errors.New("no user token available")

// TokenProvider supplies the user-identifying value sent with each request.
type TokenProvider interface {
	UserToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider backed by a fixed value.
type StaticToken string

func (s StaticToken) UserToken(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoUserToken
	}
	return string(s), nil
}
