package embedded

import (
	"time"

	"github.com/google/uuid"
	"github.com/stitchfast/authsync"
	"github.com/uptrace/bun"
)

// UserRecord is the persisted identity behind the embedded provider.
type UserRecord struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName      string         `bun:"first_name" json:"first_name,omitempty"`
	LastName       string         `bun:"last_name" json:"last_name,omitempty"`
	Email          string         `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string         `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string         `bun:"password_hash" json:"-"`
	EmailConfirmed bool           `bun:"is_email_confirmed" json:"is_email_confirmed,omitempty"`
	Metadata       map[string]any `bun:"metadata" json:"metadata,omitempty"`
	LoggedInAt     *time.Time     `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time     `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

func (r *UserRecord) toUser() *authsync.User {
	if r == nil {
		return nil
	}
	return &authsync.User{
		ID:        r.ID,
		Email:     r.Email,
		Phone:     r.Phone,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
}
