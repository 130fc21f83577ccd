package internal

import (
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrEmptyIdentifier is returned when a key is derived without an identifier.
	ErrEmptyIdentifier = errors.New("identifier must be a non-empty string")
	// ErrEmptySecret is returned when a key is derived without a secret.
	ErrEmptySecret = errors.New("secret must be a non-empty string")
)

// NewIdentifier returns a fresh session identifier: a random (version 4) UUID,
// 122 bits from crypto/rand, formatted as five hyphen-separated hex groups.
func NewIdentifier() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// DeriveKey combines an identifier and a caller secret into the storage key.
//
// The encoding is reversible on purpose: a later Verify re-derives the same key
// from the identifier and the secret the caller alone holds. Nothing here is a
// hash, so the key space reveals identifier+secret to anyone who can list it.
func DeriveKey(identifier, secret string) (string, error) {
	if identifier == "" {
		return "", ErrEmptyIdentifier
	}
	if secret == "" {
		return "", ErrEmptySecret
	}

	raw := make([]byte, 0, len(identifier)+len(secret))
	raw = append(raw, identifier...)
	raw = append(raw, secret...)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeKey reverses DeriveKey and returns identifier+secret as one string.
func DecodeKey(key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", errors.New("empty storage key")
	}
	return string(raw), nil
}
