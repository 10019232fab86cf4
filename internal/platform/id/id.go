// Package id generates the opaque identifiers used by every stored record.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a URL-safe identifier built from UUIDv4 bytes encoded as base32.
// The identifier is 26 characters long, lowercase, and contains no padding.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// Valid reports whether value has the shape produced by NewID.
func Valid(value string) bool {
	if len(value) != 26 {
		return false
	}
	decoded, err := encoding.DecodeString(strings.ToUpper(value))
	return err == nil && len(decoded) == 16
}
