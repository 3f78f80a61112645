// Package id generates opaque record identifiers.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random v4 UUID rendered as 26 lowercase base32 characters.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// Parse decodes an identifier produced by NewID back into its UUID.
func Parse(value string) (uuid.UUID, error) {
	decoded, err := encoding.DecodeString(strings.ToUpper(strings.TrimSpace(value)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode id: %w", err)
	}
	parsed, err := uuid.FromBytes(decoded)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode id: %w", err)
	}
	return parsed, nil
}
