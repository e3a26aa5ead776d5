package sessionid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewIsWellFormedAndSortable(t *testing.T) {
	a := New()
	time.Sleep(2 * time.Millisecond)
	b := New()

	assert.Len(t, a, 26)
	assert.True(t, Valid(a))
	assert.True(t, Valid(b))
	assert.Less(t, a, b, "later identifiers must sort after earlier ones")
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		assert.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestValidRejectsGarbage(t *testing.T) {
	assert.False(t, Valid("not-a-ulid"))
	assert.False(t, Valid(""))
}

func TestTimeRoundTrips(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := New()
	after := time.Now().Add(time.Second)

	ts := Time(id)
	assert.True(t, ts.After(before))
	assert.True(t, ts.Before(after))
}
