package app

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource picks indices for content selection.
//
// Implementations must be safe for concurrent use.
type RandomSource interface {
	// Intn returns a uniformly distributed int in [0, n). n > 0.
	Intn(n int) int
}

type lockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a time-seeded RandomSource.
func NewRandomSource() RandomSource {
	return NewSeededSource(time.Now().UnixNano())
}

// NewSeededSource returns a deterministic RandomSource, useful in tests.
func NewSeededSource(seed int64) RandomSource {
	return &lockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}
