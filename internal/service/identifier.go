package service

import (
	"math/rand"
	"strconv"
	"sync"
)

// RandomIdentifierGenerator implements ports.IdentifierGenerator with an
// injected pseudo-random source. It produces a 6-digit number formatted as
// NNNNN-N. Candidates are not globally unique; the account store's unique
// index rejects collisions and callers retry.
type RandomIdentifierGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomIdentifierGenerator creates a generator seeded with seed.
func NewRandomIdentifierGenerator(seed int64) *RandomIdentifierGenerator {
	return &RandomIdentifierGenerator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns a fresh NNNNN-N candidate identifier.
func (g *RandomIdentifierGenerator) Generate() string {
	g.mu.Lock()
	n := g.rnd.Intn(900000) + 100000
	g.mu.Unlock()

	s := strconv.Itoa(n)
	return s[:5] + "-" + s[5:]
}
