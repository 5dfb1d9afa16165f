package authsync_test

import (
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchfast/authsync"
)

func TestNormalizeErrorNil(t *testing.T) {
	assert.Nil(t, authsync.NormalizeError(nil))
}

func TestNormalizeErrorKeepsTextCodeAsName(t *testing.T) {
	authErr := authsync.NormalizeError(authsync.ErrInvalidCredentials.Clone())
	require.NotNil(t, authErr)
	assert.Equal(t, authsync.TextCodeInvalidCredentials, authErr.Name)
	assert.Equal(t, "invalid login credentials", authErr.Message)
	assert.False(t, authErr.IsUnexpected())
}

func TestNormalizeErrorUnwrapsRichError(t *testing.T) {
	wrapped := fmt.Errorf("signing in: %w", authsync.ErrUserExists.Clone())

	authErr := authsync.NormalizeError(wrapped)
	require.NotNil(t, authErr)
	assert.Equal(t, authsync.TextCodeUserExists, authErr.Name)
}

func TestNormalizeErrorRichWithoutTextCode(t *testing.T) {
	err := goerrors.New("upstream timeout", goerrors.CategoryOperation)

	authErr := authsync.NormalizeError(err)
	require.NotNil(t, authErr)
	assert.Equal(t, authsync.TextCodeProviderFailure, authErr.Name)
	assert.Equal(t, "upstream timeout", authErr.Message)
}

func TestNormalizeErrorBareErrorIsUnexpected(t *testing.T) {
	authErr := authsync.NormalizeError(fmt.Errorf("connection reset"))
	require.NotNil(t, authErr)
	assert.Equal(t, authsync.UnexpectedErrorName, authErr.Name)
	assert.Equal(t, "connection reset", authErr.Message)
	assert.True(t, authErr.IsUnexpected())
}

func TestAuthErrorError(t *testing.T) {
	authErr := &authsync.AuthError{Name: "INVALID_CREDENTIALS", Message: "invalid login credentials"}
	assert.Equal(t, "INVALID_CREDENTIALS: invalid login credentials", authErr.Error())
}
