package authsync

import "context"

var synchronizerCtxKey = &contextKey{"synchronizer"}
var stateCtxKey = &contextKey{"auth-state"}

type contextKey struct {
	name string
}

// WithContext sets the Synchronizer in the given context.
func WithContext(ctx context.Context, sync *Synchronizer) context.Context {
	return context.WithValue(ctx, synchronizerCtxKey, sync)
}

// FromContext finds the Synchronizer in the context.
func FromContext(ctx context.Context) (*Synchronizer, bool) {
	raw, ok := ctx.Value(synchronizerCtxKey).(*Synchronizer)
	return raw, ok
}

// MustFromContext returns the Synchronizer or panics. Reading synchronized
// state outside a scope that owns one is a programmer error, not a runtime
// condition, so it fails fast.
func MustFromContext(ctx context.Context) *Synchronizer {
	sync, ok := FromContext(ctx)
	if !ok {
		panic("authsync: no Synchronizer in context; wrap the scope with authsync.WithContext")
	}
	return sync
}

// WithStateContext sets an AuthState snapshot in the given context. The
// route guard uses this to hand resolved state to downstream handlers.
func WithStateContext(ctx context.Context, state AuthState) context.Context {
	return context.WithValue(ctx, stateCtxKey, state)
}

// StateFromContext extracts an AuthState snapshot from the context.
func StateFromContext(ctx context.Context) (AuthState, bool) {
	raw, ok := ctx.Value(stateCtxKey).(AuthState)
	return raw, ok
}
