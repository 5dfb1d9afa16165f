package hosted

import (
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stitchfast/authsync"
)

// SessionClaims are the claims the identity service signs into access
// tokens. Profile fields live under the metadata claim.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// TokenValidator verifies access tokens against the identity service's
// JWKS. Services consuming sessions minted elsewhere (the storefront API
// trusting front-channel tokens) use this instead of sharing a secret.
type TokenValidator struct {
	jwks   *keyfunc.JWKS
	logger authsync.Logger
}

// NewTokenValidator fetches the JWKS and keeps it refreshed in the
// background until Close is called.
func NewTokenValidator(jwksURL string, logger authsync.Logger) (*TokenValidator, error) {
	if logger == nil {
		logger = authsync.DefaultLogger()
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("background JWKS refresh failed: %v", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch identity JWKS")
	}

	return &TokenValidator{jwks: jwks, logger: logger}, nil
}

// Validate parses and verifies a raw access token, returning its claims.
func (v *TokenValidator) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "access token expired").
				WithCode(goerrors.CodeUnauthorized)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithCode(goerrors.CodeUnauthorized)
	}

	if !token.Valid {
		return nil, goerrors.New("invalid access token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	return claims, nil
}

// UserFromToken validates a raw token and materializes the identity it
// carries, the same shape sessions carry.
func (v *TokenValidator) UserFromToken(tokenString string) (*authsync.User, error) {
	claims, err := v.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "malformed subject claim")
	}

	user := &authsync.User{
		ID:       id,
		Email:    claims.Email,
		Phone:    claims.Phone,
		Metadata: claims.Metadata,
	}

	if first, ok := claims.Metadata["first_name"].(string); ok {
		user.FirstName = first
	}
	if last, ok := claims.Metadata["last_name"].(string); ok {
		user.LastName = last
	}

	return user, nil
}

// Close stops the background JWKS refresh.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
