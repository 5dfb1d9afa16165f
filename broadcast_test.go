package authsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchfast/authsync"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := authsync.NewBroadcaster()

	var first, second []authsync.ChangeEvent
	b.Subscribe(func(event authsync.ChangeEvent, _ *authsync.Session) {
		first = append(first, event)
	})
	b.Subscribe(func(event authsync.ChangeEvent, _ *authsync.Session) {
		second = append(second, event)
	})

	b.Emit(authsync.EventSignedIn, testSession("a@b.com"))
	b.Emit(authsync.EventSignedOut, nil)

	assert.Equal(t, []authsync.ChangeEvent{authsync.EventSignedIn, authsync.EventSignedOut}, first)
	assert.Equal(t, first, second)
}

func TestBroadcasterCancelStopsDelivery(t *testing.T) {
	b := authsync.NewBroadcaster()

	calls := 0
	sub := b.Subscribe(func(authsync.ChangeEvent, *authsync.Session) {
		calls++
	})

	b.Emit(authsync.EventSignedIn, nil)
	sub.Cancel()
	b.Emit(authsync.EventSignedOut, nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcasterCancelIsIdempotent(t *testing.T) {
	b := authsync.NewBroadcaster()

	sub := b.Subscribe(func(authsync.ChangeEvent, *authsync.Session) {})
	other := b.Subscribe(func(authsync.ChangeEvent, *authsync.Session) {})

	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 1, b.SubscriberCount())
	other.Cancel()
	assert.Equal(t, 0, b.SubscriberCount())
}

func TestBroadcasterHandlerMayCancelItself(t *testing.T) {
	b := authsync.NewBroadcaster()

	var sub authsync.Subscription
	calls := 0
	sub = b.Subscribe(func(authsync.ChangeEvent, *authsync.Session) {
		calls++
		sub.Cancel()
	})

	require.NotPanics(t, func() {
		b.Emit(authsync.EventTokenRefreshed, nil)
		b.Emit(authsync.EventTokenRefreshed, nil)
	})

	assert.Equal(t, 1, calls)
}
