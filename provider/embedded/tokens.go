package embedded

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// accessClaims mirror the hosted service's token shape so consumers can
// swap providers without changing how they read tokens.
type accessClaims struct {
	jwt.RegisteredClaims
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

type tokenIssuer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// issue signs an HS256 access token for the record and returns it with
// its expiry.
func (t tokenIssuer) issue(record *UserRecord, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(t.ttl)

	claims := &accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    t.issuer,
			Subject:   record.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:    record.Email,
		Phone:    record.Phone,
		Metadata: record.Metadata,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return signed, expiresAt, nil
}
