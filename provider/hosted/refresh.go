package hosted

import (
	"context"
	"time"

	"github.com/stitchfast/authsync"
)

const refreshTimeout = 10 * time.Second

// Refresh exchanges the stored refresh token for a new session and
// announces it as TOKEN_REFRESHED. Callers normally never need this; the
// client renews sessions on its own before they expire.
func (c *Client) Refresh(ctx context.Context) (*authsync.Session, error) {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil || sess.RefreshToken == "" {
		return nil, authsync.ErrSessionMissing.Clone()
	}

	tr, err := c.postToken(ctx, c.config.TokenURL+"?grant_type=refresh_token", map[string]string{
		"refresh_token": sess.RefreshToken,
	}, "refresh")
	if err != nil {
		return nil, err
	}

	// Refresh responses may omit the user record; the identity is unchanged.
	next, err := c.sessionFromTokenResponse(tr, sess.User)
	if err != nil {
		return nil, err
	}

	c.adopt(next, authsync.EventTokenRefreshed)
	return next, nil
}

// scheduleRefreshLocked arms the renewal timer for the session. Sessions
// without expiry or refresh token are left alone.
func (c *Client) scheduleRefreshLocked(sess *authsync.Session) {
	c.stopRefreshLocked()

	if sess == nil || sess.ExpiresAt == nil || sess.RefreshToken == "" {
		return
	}

	wait := sess.ExpiresAt.Sub(c.clock()) - c.config.RefreshLeeway
	if wait < 0 {
		wait = 0
	}

	c.refreshTimer = time.AfterFunc(wait, c.backgroundRefresh)
}

func (c *Client) stopRefreshLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

// backgroundRefresh runs off the renewal timer. A refresh that fails is a
// dead session: the service has either revoked the token family or is
// rejecting the client, so the session is released as signed out.
func (c *Client) backgroundRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Warn("background session refresh failed, signing out: %v", err)
		c.expireLocal()
	}
}

// expireLocal drops the stored session and announces sign-out without
// calling the service.
func (c *Client) expireLocal() {
	c.mu.Lock()
	if c.current == nil || c.closed {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.stopRefreshLocked()
	c.mu.Unlock()

	go c.events.Emit(authsync.EventSignedOut, nil)
}
