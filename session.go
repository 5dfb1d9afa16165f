package authsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is the identity record nested inside a Session. It is produced by
// providers and read-only everywhere else.
type User struct {
	ID        uuid.UUID      `json:"id,omitempty"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	FirstName string         `json:"first_name,omitempty"`
	LastName  string         `json:"last_name,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt *time.Time     `json:"created_at,omitempty"`
}

// Session is the token bundle proving an authenticated period. The
// Synchronizer stores the most recently observed one and never mutates it.
type Session struct {
	AccessToken  string     `json:"access_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	User         *User      `json:"user,omitempty"`
}

// Expired reports whether the session's access token is past its expiry.
// Sessions without expiry metadata never report expired.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == nil {
		return false
	}
	return !now.Before(*s.ExpiresAt)
}

// Clone returns a shallow copy safe to hand to consumers. The User pointer
// is shared; consumers treat it as read-only.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

func (s *Session) String() string {
	if s == nil {
		return "Session<nil>"
	}
	email := ""
	if s.User != nil {
		email = s.User.Email
	}
	exp := "none"
	if s.ExpiresAt != nil {
		exp = s.ExpiresAt.Format(time.RFC3339)
	}
	return fmt.Sprintf("Session<user=%s expires=%s>", email, exp)
}
