package hosted

import (
	"net/http"
	"strings"
	"time"
)

const (
	defaultTokenPath  = "/token"
	defaultSignupPath = "/signup"
	defaultLogoutPath = "/logout"
	defaultJWKSPath   = "/.well-known/jwks.json"
)

// Config holds hosted identity service configuration. Only BaseURL and
// APIKey are required; endpoint overrides exist for self-hosted deploys
// that route differently.
type Config struct {
	// BaseURL is the root of the identity service (e.g. "https://id.example.com/auth/v1").
	BaseURL string

	// APIKey is sent on every request; the service scopes tenants by it.
	APIKey string

	TokenURL  string
	SignupURL string
	LogoutURL string
	JWKSURL   string

	// RefreshLeeway is how long before expiry the background refresh runs.
	RefreshLeeway time.Duration

	HTTPClient *http.Client
}

func (c *Config) applyDefaults() {
	base := strings.TrimRight(c.BaseURL, "/")
	if c.TokenURL == "" {
		c.TokenURL = base + defaultTokenPath
	}
	if c.SignupURL == "" {
		c.SignupURL = base + defaultSignupPath
	}
	if c.LogoutURL == "" {
		c.LogoutURL = base + defaultLogoutPath
	}
	if c.JWKSURL == "" {
		c.JWKSURL = base + defaultJWKSPath
	}
	if c.RefreshLeeway <= 0 {
		c.RefreshLeeway = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}
