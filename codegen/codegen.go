// Package codegen produces and checks short link codes.
// Generators are safe for concurrent use.
package codegen

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	MinLength     = 6
	MaxLength     = 8
	DefaultLength = 6
)

// Bytes at or above this value are rejected so every symbol is equally likely.
const maxUnbiased = 256 - 256%len(Alphabet)

// Generator generates link codes.
type Generator interface {
	Generate(length int) (string, error)
}

type base62 struct {
	rand io.Reader
}

// NewBase62 returns a Generator drawing uniformly from Alphabet.
func NewBase62() Generator {
	return &base62{rand: rand.Reader}
}

// NewBase62From is NewBase62 with an explicit entropy source.
func NewBase62From(r io.Reader) Generator {
	return &base62{rand: r}
}

func (g *base62) Generate(length int) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("code length must be between %d and %d, got %d", MinLength, MaxLength, length)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// Valid reports whether code is MinLength to MaxLength ASCII letters or digits.
func Valid(code string) bool {
	if len(code) < MinLength || len(code) > MaxLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
