// Package hosted implements the authsync.Provider contract against a
// remote identity service's REST API.
//
// The client keeps the issued session in memory, renews it in the
// background before the access token expires, and announces every
// transition (sign-in, refresh, sign-out, expiry) through the session
// change channel. Access tokens can be verified against the service's
// JWKS endpoint with TokenValidator.
//
// Wire errors carry structured codes (invalid_credentials,
// user_already_exists, email_not_confirmed); the client maps those onto
// the authsync error vocabulary instead of matching message substrings.
package hosted
