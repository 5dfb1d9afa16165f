package authsync

// AuthState is the synchronized mirror of the provider's session. Values
// are snapshots: reading one never observes a half-applied transition.
//
// Invariants, held for every snapshot:
//   - IsAuthenticated == (User != nil)
//   - User is the user carried by Session, never set independently
//   - IsLoading is true only during the initial fetch or while an
//     imperative action is in flight
type AuthState struct {
	User            *User
	Session         *Session
	IsAuthenticated bool
	IsLoading       bool
}
