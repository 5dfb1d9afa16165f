package authsync

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ChangeEvent labels why the provider's session changed.
type ChangeEvent string

const (
	// EventSignedIn fires after a credential or signup flow settles remotely.
	EventSignedIn ChangeEvent = "SIGNED_IN"
	// EventSignedOut fires when the remote session ends, locally or elsewhere.
	EventSignedOut ChangeEvent = "SIGNED_OUT"
	// EventTokenRefreshed fires when the provider rotates tokens on a live session.
	EventTokenRefreshed ChangeEvent = "TOKEN_REFRESHED"
)

// ChangeHandler receives the session that is now authoritative. A nil
// session means the user is signed out.
type ChangeHandler func(event ChangeEvent, session *Session)

// Subscription releases a change-event registration. Cancel is safe to
// call more than once; only the first call has any effect.
type Subscription interface {
	Cancel()
}

// Profile carries optional signup fields forwarded opaquely to the provider.
type Profile struct {
	FirstName string
	LastName  string
	Phone     string
	Metadata  map[string]any
}

// Provider is the identity-provider client contract the Synchronizer
// mirrors. Implementations own credential validation, persistence, and
// token lifecycle; the Synchronizer only observes them.
type Provider interface {
	// CurrentSession returns the session the provider currently considers
	// authoritative, or nil when signed out.
	CurrentSession(ctx context.Context) (*Session, error)

	// OnSessionChange registers a handler for session transitions. Handlers
	// may be invoked from provider-owned goroutines.
	OnSessionChange(handler ChangeHandler) Subscription

	// SignIn exchanges credentials for a session. The returned session is
	// also announced through OnSessionChange.
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignUp registers a new identity and, when the provider allows it,
	// signs it in.
	SignUp(ctx context.Context, email, password string, profile Profile) (*Session, error)

	// SignOut ends the current session. Signing out with no session is not
	// an error.
	SignOut(ctx context.Context) error
}

// DefaultLogger returns the printf logger used when no Logger is injected.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHSYNC "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
