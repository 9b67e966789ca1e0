// Package auth gates the capture-client ingest socket behind a shared token.
package auth

import (
	"crypto/subtle"
	"errors"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator checks the bearer token presented by a capture client.
type Validator interface {
	Validate(token string) error
}

// StaticToken matches a single preconfigured token. An unset token rejects
// everything rather than waving clients through.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
