package waitlist

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Clock supplies the current time so the lifecycle manager stays testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns a Clock backed by time.Now in UTC.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a Clock pinned to a settable instant, for tests.
type FixedClock struct {
	Time time.Time
}

func (c *FixedClock) Now() time.Time { return c.Time }

// Advance moves the fixed clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.Time = c.Time.Add(d) }

// TokenGenerator mints opaque offer tokens. Tokens authenticate the public
// response endpoint, so they must be unguessable.
type TokenGenerator interface {
	Generate() (string, error)
}

type cryptoTokenGenerator struct{}

// NewTokenGenerator returns the production generator: 32 random bytes,
// base64url-encoded (256 bits of entropy).
func NewTokenGenerator() TokenGenerator { return cryptoTokenGenerator{} }

func (cryptoTokenGenerator) Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("waitlist: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
