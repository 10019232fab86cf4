// Package random provides seed helpers for the seeded dice roller.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ResolveSeed returns *seed when the caller pinned one, or a fresh seed.
func ResolveSeed(seed *int64) (int64, error) {
	if seed != nil {
		return *seed, nil
	}
	return NewSeed()
}
