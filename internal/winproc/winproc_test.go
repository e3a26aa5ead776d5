package winproc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildTestHandle constructs a Handle without going through a platform
// constructor, for testing the close-lifecycle logic in isolation.
func buildTestHandle(closes *int) *Handle {
	return &Handle{
		value: 1,
		closeFn: func(uintptr) error {
			*closes++
			return nil
		},
	}
}

func TestHandleCloseIsIdempotent(t *testing.T) {
	closes := 0
	h := buildTestHandle(&closes)

	assert.True(t, h.Valid())
	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.Equal(t, 1, closes)
}

func TestHandleCloseOnNilIsNoop(t *testing.T) {
	var h *Handle
	assert.False(t, h.Valid())
	assert.Equal(t, uintptr(0), h.Value())
	assert.NoError(t, h.Close())
}

func TestHandleClosePropagatesError(t *testing.T) {
	wantErr := errors.New("close failed")
	h := &Handle{
		value:   1,
		closeFn: func(uintptr) error { return wantErr },
	}
	assert.ErrorIs(t, h.Close(), wantErr)
}

func TestPipePairClosesBothEnds(t *testing.T) {
	readCloses, writeCloses := 0, 0
	pair := &PipePair{
		Read:  buildTestHandle(&readCloses),
		Write: buildTestHandle(&writeCloses),
	}

	assert.NoError(t, pair.Close())
	assert.Equal(t, 1, readCloses)
	assert.Equal(t, 1, writeCloses)
}

func TestPipePairCloseOnNilIsNoop(t *testing.T) {
	var pair *PipePair
	assert.NoError(t, pair.Close())
}

func TestPipePairCloseReturnsReadErrorFirst(t *testing.T) {
	readErr := errors.New("read close failed")
	pair := &PipePair{
		Read:  &Handle{value: 1, closeFn: func(uintptr) error { return readErr }},
		Write: &Handle{value: 1, closeFn: func(uintptr) error { return nil }},
	}
	assert.ErrorIs(t, pair.Close(), readErr)
}
