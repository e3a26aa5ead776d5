package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFanoutDeliversToEverySubscriber(t *testing.T) {
	f := newFanout()
	_, a := f.subscribe()
	_, b := f.subscribe()

	f.publish([]byte("hello"))

	assert.Equal(t, []byte("hello"), <-a)
	assert.Equal(t, []byte("hello"), <-b)
}

func TestFanoutDropsForLaggedSubscriber(t *testing.T) {
	f := newFanout()
	_, slow := f.subscribe()

	for i := 0; i < subscriberChanSize+10; i++ {
		f.publish([]byte{byte(i)})
	}

	// The slow subscriber's channel is full; further chunks are dropped
	// rather than blocking the publisher. Lost bytes are not replayed.
	assert.Len(t, slow, subscriberChanSize)
}

func TestFanoutUnsubscribeClosesChannel(t *testing.T) {
	f := newFanout()
	id, ch := f.subscribe()
	f.unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestFanoutCloseClosesAllSubscribers(t *testing.T) {
	f := newFanout()
	_, a := f.subscribe()
	_, b := f.subscribe()

	f.close()

	_, okA := <-a
	_, okB := <-b
	assert.False(t, okA)
	assert.False(t, okB)
}

func TestFanoutSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	f := newFanout()
	f.close()

	id, ch := f.subscribe()
	require.Equal(t, -1, id)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestFanoutUnsubscribeNegativeIDIsNoop(t *testing.T) {
	f := newFanout()
	assert.NotPanics(t, func() { f.unsubscribe(-1) })
}
