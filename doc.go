// Package authsync keeps a local, observable mirror of the session state
// owned by a hosted identity provider.
//
// Session truth lives remotely and can change for reasons unrelated to any
// local call: tokens refresh, sessions expire, a user signs out elsewhere.
// The Synchronizer therefore never writes session fields from the return
// value of Login, Register, or Logout. It subscribes to the provider's
// change events and treats each event as an already-settled transition,
// so the "did my call succeed" signal stays decoupled from the "what is
// the current session" signal.
//
// State model:
//   - AuthState carries User, Session, IsAuthenticated, and IsLoading.
//     IsAuthenticated and User are derived from the observed Session and
//     can never disagree with it.
//   - IsLoading is true only while the initial session fetch is pending or
//     while an imperative action is in flight. Change events never touch it.
//
// Providers:
//   - provider/hosted talks to a remote identity service over its REST API,
//     validates issued tokens against the service JWKS, and renews sessions
//     in the background before they expire.
//   - provider/embedded runs the same contract in-process on SQLite, which
//     keeps development and tests off the network.
//
// Operations resolve with an *AuthError rather than panicking or returning
// provider-specific failures; unexpected errors are normalized into the
// same shape so callers have exactly one failure path.
package authsync
