package authsync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchfast/authsync"
)

func TestSynchronizerContextRoundTrip(t *testing.T) {
	syncer := authsync.New(newFakeProvider())
	ctx := authsync.WithContext(context.Background(), syncer)

	got, ok := authsync.FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, syncer, got)
	assert.Same(t, syncer, authsync.MustFromContext(ctx))
}

func TestFromContextMissing(t *testing.T) {
	got, ok := authsync.FromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMustFromContextPanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() {
		authsync.MustFromContext(context.Background())
	})
}

func TestStateContextRoundTrip(t *testing.T) {
	state := authsync.AuthState{IsAuthenticated: false, IsLoading: true}
	ctx := authsync.WithStateContext(context.Background(), state)

	got, ok := authsync.StateFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, state, got)

	_, ok = authsync.StateFromContext(context.Background())
	assert.False(t, ok)
}
