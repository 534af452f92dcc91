// Package ident generates identifiers for new entities.
package ident

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// Generator produces globally unique opaque identifiers.
type Generator interface {
	NewID() string
}

// UUID generates random (v4) UUID strings.
type UUID struct{}

func (UUID) NewID() string {
	return uuid.NewString()
}

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// OrDefault returns id when it is non-empty, otherwise a freshly generated one.
func OrDefault(gen Generator, id string) string {
	if id != "" {
		return id
	}
	return gen.NewID()
}

// GradeID derives a grade identifier from its order. Two grades with the same
// order share an id.
func GradeID(order int) string {
	return "grade-" + strconv.Itoa(order)
}

// Sequence is a deterministic Generator for tests: prefix-1, prefix-2, ...
type Sequence struct {
	Prefix string

	mu sync.Mutex
	n  int
}

func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.Prefix + "-" + strconv.Itoa(s.n)
}
