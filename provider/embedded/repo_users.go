package embedded

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the identity store behind the embedded provider.
type Users interface {
	repository.Repository[*UserRecord]

	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	ConfirmEmail(ctx context.Context, email string) error
	TrackSuccessfulLogin(ctx context.Context, record *UserRecord) error
}

type users struct {
	repository.Repository[*UserRecord]
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*UserRecord](db, repository.ModelHandlers[*UserRecord]{
		NewRecord: func() *UserRecord { return &UserRecord{} },
		GetID: func(u *UserRecord) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *UserRecord, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByEmail(ctx context.Context, email string) (*UserRecord, error) {
	email = NormalizeEmail(email)

	record := &UserRecord{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
				"email": email,
			})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) ConfirmEmail(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	res, err := a.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("is_email_confirmed = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("email = ?", email).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().WithMetadata(map[string]any{
			"email": email,
		})
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, record *UserRecord) error {
	if record == nil {
		return nil
	}

	now := time.Now()
	_, err := a.db.NewUpdate().
		Model((*UserRecord)(nil)).
		Set("loggedin_at = ?", now).
		Where("id = ?", record.ID).
		Exec(ctx)
	if err != nil {
		return err
	}

	record.LoggedInAt = &now
	return nil
}

// NormalizeEmail lowercases and trims an email so lookups and uniqueness
// agree regardless of how the address was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
