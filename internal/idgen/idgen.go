// Package idgen produces primary keys for link rows.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator generates unique identifiers. Implementations are safe for
// concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() (uuid.UUID, error)

func (f GeneratorFunc) Generate() (uuid.UUID, error) { return f() }

type v7Gen struct {
	retries int
	newV7   func() (uuid.UUID, error)
}

type Option func(*v7Gen)

// WithRetries sets how many extra attempts follow a failed uuid.NewV7 call.
func WithRetries(n int) Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.retries = n
		}
	}
}

// NewV7 returns a Generator of time-ordered UUIDs, which keep inserts into
// the links primary key index append-mostly.
func NewV7(opts ...Option) Generator {
	g := &v7Gen{retries: 1, newV7: uuid.NewV7}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for attempt := 0; attempt <= g.retries; attempt++ {
		id, err := g.newV7()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("uuid v7 generation failed after %d attempts: %w", g.retries+1, last)
}
