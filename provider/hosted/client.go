package hosted

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stitchfast/authsync"
)

// Client talks to the hosted identity service and keeps the issued
// session in memory. It implements authsync.Provider.
type Client struct {
	config Config
	logger authsync.Logger
	events *authsync.Broadcaster
	clock  func() time.Time

	mu           sync.Mutex
	current      *authsync.Session
	refreshTimer *time.Timer
	closed       bool
}

var _ authsync.Provider = (*Client)(nil)

type Option func(*Client)

func WithLogger(logger authsync.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New creates a hosted identity client.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()

	c := &Client{
		config: cfg,
		logger: authsync.DefaultLogger(),
		events: authsync.NewBroadcaster(),
		clock:  time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Close stops the background refresh and drops the stored session without
// calling the service. Further calls emit no events.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.current = nil
	c.stopRefreshLocked()
}

// OnSessionChange implements authsync.Provider.
func (c *Client) OnSessionChange(handler authsync.ChangeHandler) authsync.Subscription {
	return c.events.Subscribe(handler)
}

// CurrentSession implements authsync.Provider. An expired stored session
// is refreshed in place; if that fails the caller sees the error and the
// synchronizer treats it as signed out.
func (c *Client) CurrentSession(ctx context.Context) (*authsync.Session, error) {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil {
		return nil, nil
	}

	if !sess.Expired(c.clock()) {
		return sess.Clone(), nil
	}

	return c.Refresh(ctx)
}

// SignIn implements authsync.Provider.
func (c *Client) SignIn(ctx context.Context, email, password string) (*authsync.Session, error) {
	tr, err := c.postToken(ctx, c.config.TokenURL+"?grant_type=password", map[string]string{
		"email":    email,
		"password": password,
	}, "sign_in")
	if err != nil {
		return nil, err
	}

	sess, err := c.sessionFromTokenResponse(tr, nil)
	if err != nil {
		return nil, err
	}

	c.adopt(sess, authsync.EventSignedIn)
	return sess, nil
}

// SignUp implements authsync.Provider. When the service requires email
// confirmation it responds without tokens; registration succeeded but no
// session exists yet, so no event fires.
func (c *Client) SignUp(ctx context.Context, email, password string, profile authsync.Profile) (*authsync.Session, error) {
	data := map[string]any{}
	for k, v := range profile.Metadata {
		data[k] = v
	}
	if profile.FirstName != "" {
		data["first_name"] = profile.FirstName
	}
	if profile.LastName != "" {
		data["last_name"] = profile.LastName
	}

	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     data,
	}
	if profile.Phone != "" {
		body["phone"] = profile.Phone
	}

	tr, err := c.postToken(ctx, c.config.SignupURL, body, "sign_up")
	if err != nil {
		return nil, err
	}

	if tr.AccessToken == "" {
		c.logger.Info("signup accepted, confirmation pending for %s", email)
		return nil, nil
	}

	sess, err := c.sessionFromTokenResponse(tr, nil)
	if err != nil {
		return nil, err
	}

	c.adopt(sess, authsync.EventSignedIn)
	return sess, nil
}

// SignOut implements authsync.Provider. The local session is always
// released and announced, even when revoking the token remotely fails;
// the service will let the token age out.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	c.stopRefreshLocked()
	closed := c.closed
	c.mu.Unlock()

	if sess == nil || closed {
		return nil
	}

	if err := c.revoke(ctx, sess.AccessToken); err != nil {
		c.logger.Warn("remote sign-out failed, token left to expire: %v", err)
	}

	go c.events.Emit(authsync.EventSignedOut, nil)
	return nil
}

// adopt stores the session as current, schedules its renewal, and
// announces the transition. Events are emitted asynchronously: callers of
// SignIn get their result back before the mirror updates.
func (c *Client) adopt(sess *authsync.Session, event authsync.ChangeEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.current = sess
	c.scheduleRefreshLocked(sess)
	c.mu.Unlock()

	go c.events.Emit(event, sess)
}

func (c *Client) sessionFromTokenResponse(tr *tokenResponse, fallback *authsync.User) (*authsync.Session, error) {
	user := fallback
	if tr.User != nil {
		u, err := tr.User.toUser()
		if err != nil {
			return nil, err
		}
		user = u
	}

	sess := &authsync.Session{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		User:         user,
	}

	if tr.ExpiresIn > 0 {
		exp := c.clock().Add(time.Duration(tr.ExpiresIn) * time.Second)
		sess.ExpiresAt = &exp
	} else if exp, ok := tokenExpiry(tr.AccessToken); ok {
		sess.ExpiresAt = &exp
	}

	return sess, nil
}

// tokenExpiry reads the exp claim without verifying the signature; expiry
// scheduling does not need a trusted value, TokenValidator does.
func tokenExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	User         *wireUser `json:"user"`
}

type wireUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Phone        string         `json:"phone"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    *time.Time     `json:"created_at"`
}

func (u *wireUser) toUser() (*authsync.User, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "malformed user id in identity response")
	}

	user := &authsync.User{
		ID:        id,
		Email:     u.Email,
		Phone:     u.Phone,
		Metadata:  u.UserMetadata,
		CreatedAt: u.CreatedAt,
	}

	if first, ok := u.UserMetadata["first_name"].(string); ok {
		user.FirstName = first
	}
	if last, ok := u.UserMetadata["last_name"].(string); ok {
		user.LastName = last
	}

	return user, nil
}

func (c *Client) postToken(ctx context.Context, url string, body any, operation string) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "identity service unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read identity response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(operation, resp.StatusCode, raw)
	}

	tr := &tokenResponse{}
	if err := json.Unmarshal(raw, tr); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "malformed identity response")
	}

	return tr, nil
}

func (c *Client) revoke(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.LogoutURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.config.APIKey != "" {
		req.Header.Set("apikey", c.config.APIKey)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		return decodeAPIError("sign_out", resp.StatusCode, raw)
	}

	return nil
}
