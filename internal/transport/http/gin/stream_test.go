package httpgin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamHubCoalescesAndUnsubscribes(t *testing.T) {
	hub := NewStreamHub()

	ch, cancel := hub.Subscribe(7)
	other, cancelOther := hub.Subscribe(8)
	defer cancelOther()

	hub.Notify(7)
	hub.Notify(7)

	assert.Len(t, ch, 1)
	assert.Len(t, other, 0)

	<-ch
	cancel()
	cancel()
	assert.Zero(t, hub.Subscribers(7))
	assert.Equal(t, 1, hub.Subscribers(8))

	hub.Notify(7)
	assert.Len(t, ch, 0)
}

func TestETagMatches(t *testing.T) {
	tag := `W/"abc"`
	assert.True(t, etagMatches(`W/"abc"`, tag))
	assert.True(t, etagMatches(`"abc"`, tag))
	assert.True(t, etagMatches(`"x", W/"abc"`, tag))
	assert.True(t, etagMatches(`*`, tag))
	assert.False(t, etagMatches(`"abd"`, tag))
	assert.False(t, etagMatches("", tag))
}

func TestStreamHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewStreamHub()
	ch, cancel := hub.Subscribe(1)

	hub.Close()
	_, open := <-ch
	assert.False(t, open)
	cancel()

	late, _ := hub.Subscribe(1)
	_, open = <-late
	assert.False(t, open)

	hub.Notify(1)
	hub.Close()
}
