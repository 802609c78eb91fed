// Package random provides seed generation for the target picker.
//
// Seeds come from crypto/rand so two server processes never replay the same
// target sequence, while the picker itself stays a cheap math/rand source
// that tests can pin to a fixed seed.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// NewRand returns a math/rand generator seeded by seedFn, or NewSeed when
// seedFn is nil.
func NewRand(seedFn func() (int64, error)) (*rand.Rand, error) {
	if seedFn == nil {
		seedFn = NewSeed
	}
	seed, err := seedFn()
	if err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(seed)), nil
}
