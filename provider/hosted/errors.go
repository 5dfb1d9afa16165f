package hosted

import (
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stitchfast/authsync"
)

// apiError is the identity service's JSON error body. Older deployments
// use error/error_description, newer ones error_code/msg.
type apiError struct {
	Code        string `json:"error_code"`
	Msg         string `json:"msg"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

const (
	wireInvalidCredentials = "invalid_credentials"
	wireInvalidGrant       = "invalid_grant"
	wireUserExists         = "user_already_exists"
	wireEmailNotConfirmed  = "email_not_confirmed"
)

// decodeAPIError maps a non-2xx response body onto the authsync error
// vocabulary using the service's structured codes.
func decodeAPIError(operation string, status int, body []byte) error {
	var wire apiError
	_ = json.Unmarshal(body, &wire)

	code := wire.Code
	if code == "" {
		code = wire.Error
	}
	message := wire.Msg
	if message == "" {
		message = wire.Description
	}

	switch code {
	case wireInvalidCredentials, wireInvalidGrant:
		return authsync.ErrInvalidCredentials.Clone()
	case wireUserExists:
		return authsync.ErrUserExists.Clone()
	case wireEmailNotConfirmed:
		return authsync.ErrEmailNotConfirmed.Clone()
	}

	if message == "" {
		message = "identity service request failed"
	}

	textCode := authsync.TextCodeProviderFailure
	if code != "" {
		textCode = strings.ToUpper(code)
	}

	return goerrors.New(message, goerrors.CategoryOperation).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"operation": operation,
			"status":    status,
		})
}
