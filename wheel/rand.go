/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package wheel

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Source supplies the randomness for constrained draws and spin plans.
type Source interface {
	// IntN returns a uniform integer in [0, n).
	IntN(n int) int
	// Float64 returns a uniform float in [0, 1).
	Float64() float64
}

type cryptoSource struct{}

// CryptoSource returns the default source, backed by crypto/rand.
func CryptoSource() Source { return cryptoSource{} }

func (cryptoSource) IntN(n int) int {
	return rand.New(cryptoSeed{}).IntN(n)
}

func (cryptoSource) Float64() float64 {
	return rand.New(cryptoSeed{}).Float64()
}

// cryptoSeed adapts crypto/rand to rand.Source.
type cryptoSeed struct{}

func (cryptoSeed) Uint64() uint64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		return rand.Uint64()
	}

	return binary.BigEndian.Uint64(buf[:])
}

type seededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a reproducible source, for tests and replays.
func NewSeeded(seed uint64) Source {
	return &seededSource{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.r.IntN(n)
}

func (s *seededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.r.Float64()
}
