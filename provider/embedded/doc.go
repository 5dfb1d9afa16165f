// Package embedded runs the authsync.Provider contract in-process on
// SQLite. It exists for development and tests: the full credential,
// session, and change-event path works without a network or a hosted
// tenant, and the provider still behaves like a remote one (sessions
// arrive through events, sign-in failures are uniform, confirmation can
// be required before login).
package embedded
