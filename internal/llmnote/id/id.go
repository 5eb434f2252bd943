// Package id mints identifiers for messages and conversations.
//
// Identifiers have the shape <prefix>-<unix millis>-<base36 random>, so they sort
// roughly by creation time and carry enough randomness that two ids minted in the
// same millisecond do not collide.
package id

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// RandomSource fills b with random bytes, like crypto/rand.Read.
type RandomSource func(b []byte) (int, error)

// Generator mints identifiers. The zero value is not usable; use NewGenerator.
type Generator struct {
	random RandomSource
	now    func() time.Time
}

// NewGenerator returns a Generator reading from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{random: cryptorand.Read, now: time.Now}
}

// NewGeneratorWithSource returns a Generator reading from the given source and clock.
// A nil source forces the fallback generator; a nil clock means time.Now.
func NewGeneratorWithSource(random RandomSource, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{random: random, now: now}
}

var defaultGenerator = NewGenerator()

// New mints an identifier with the package default generator.
func New(prefix string) string {
	return defaultGenerator.New(prefix)
}

// New mints an identifier. It never fails: when the strong random source is
// missing, errors, or returns short, a math/rand/v2 generator is used instead.
func (g *Generator) New(prefix string) string {
	w1, w2 := g.words()

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('-')
	b.WriteString(strconv.FormatInt(g.now().UnixMilli(), 10))
	b.WriteByte('-')
	b.WriteString(strconv.FormatUint(uint64(w1), 36))
	b.WriteString(strconv.FormatUint(uint64(w2), 36))
	return b.String()
}

func (g *Generator) words() (w1, w2 uint32) {
	if w1, w2, ok := g.strongWords(); ok {
		return w1, w2
	}
	return rand.Uint32(), rand.Uint32()
}

func (g *Generator) strongWords() (w1, w2 uint32, ok bool) {
	if g.random == nil {
		return 0, 0, false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	buf := make([]byte, 8)
	n, err := g.random(buf)
	if err != nil || n < len(buf) {
		return 0, 0, false
	}
	return binary.BigEndian.Uint32(buf[:4]), binary.BigEndian.Uint32(buf[4:]), true
}
