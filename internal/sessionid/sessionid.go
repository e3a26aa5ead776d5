// Package sessionid generates 128-bit, lexicographically time-ordered,
// Crockford-base-32 session identifiers.
package sessionid

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid"
)

// entropy is a single shared, mutex-guarded source so concurrent New()
// calls from many goroutines (session creation can race) never hand out
// the same ID for the same millisecond.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh 26-character Crockford-base-32 identifier, ordered
// lexicographically by creation time.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// Valid reports whether s parses as a well-formed identifier.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time returns the creation instant encoded in the identifier's prefix.
// It returns the zero Time if s is not a well-formed identifier.
func Time(s string) time.Time {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(id.Time())
}
