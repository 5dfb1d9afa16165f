package embedded

import (
	"context"
	"database/sql"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/stitchfast/authsync"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Config holds embedded provider options. The zero value runs an
// in-memory database with one-hour sessions and no email confirmation.
type Config struct {
	// DSN is the SQLite data source. Defaults to a private in-memory DB.
	DSN string

	// SigningKey signs issued access tokens. A random key is generated
	// when absent, which is fine for throwaway environments.
	SigningKey []byte

	Issuer         string
	AccessTokenTTL time.Duration

	// RequireConfirmation makes SignIn fail with EMAIL_NOT_CONFIRMED until
	// ConfirmEmail runs, matching hosted tenants that gate on confirmation.
	RequireConfirmation bool
}

func (c *Config) applyDefaults() {
	if c.DSN == "" {
		c.DSN = "file::memory:?cache=shared"
	}
	if len(c.SigningKey) == 0 {
		c.SigningKey = []byte(uuid.New().String())
	}
	if c.Issuer == "" {
		c.Issuer = "authsync-embedded"
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
}

// Provider implements authsync.Provider against a local SQLite store.
type Provider struct {
	config Config
	db     *bun.DB
	users  Users
	tokens tokenIssuer
	events *authsync.Broadcaster
	logger authsync.Logger
	clock  func() time.Time

	mu      sync.Mutex
	current *authsync.Session
}

var _ authsync.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithLogger(logger authsync.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// New opens the store, ensures the schema, and returns a ready provider.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	cfg.applyDefaults()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open embedded store")
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*UserRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to ensure users table")
	}

	p := &Provider{
		config: cfg,
		db:     db,
		users:  NewUsersRepository(db),
		tokens: tokenIssuer{
			signingKey: cfg.SigningKey,
			issuer:     cfg.Issuer,
			ttl:        cfg.AccessTokenTTL,
		},
		events: authsync.NewBroadcaster(),
		logger: authsync.DefaultLogger(),
		clock:  time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// Close releases the underlying database.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Users exposes the identity store for fixtures and admin tooling.
func (p *Provider) Users() Users {
	return p.users
}

// OnSessionChange implements authsync.Provider.
func (p *Provider) OnSessionChange(handler authsync.ChangeHandler) authsync.Subscription {
	return p.events.Subscribe(handler)
}

// CurrentSession implements authsync.Provider. Expired sessions are
// rotated in place and announced as refreshed.
func (p *Provider) CurrentSession(ctx context.Context) (*authsync.Session, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	if sess == nil {
		return nil, nil
	}

	if !sess.Expired(p.clock()) {
		return sess.Clone(), nil
	}

	return p.Refresh(ctx)
}

// SignIn implements authsync.Provider. Unknown emails and wrong passwords
// fail identically so callers cannot probe which emails exist.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*authsync.Session, error) {
	record, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, authsync.ErrInvalidCredentials.Clone()
		}
		return nil, err
	}

	if err := ComparePasswordAndHash(password, record.PasswordHash); err != nil {
		return nil, authsync.ErrInvalidCredentials.Clone()
	}

	if p.config.RequireConfirmation && !record.EmailConfirmed {
		return nil, authsync.ErrEmailNotConfirmed.Clone()
	}

	if err := p.users.TrackSuccessfulLogin(ctx, record); err != nil {
		p.logger.Warn("failed to track login for %s: %v", record.ID, err)
	}

	sess, err := p.openSession(record)
	if err != nil {
		return nil, err
	}

	p.adopt(sess, authsync.EventSignedIn)
	return sess, nil
}

// SignUp implements authsync.Provider. User IDs derive deterministically
// from the email so repeated dev environments produce stable identities.
func (p *Provider) SignUp(ctx context.Context, email, password string, profile authsync.Profile) (*authsync.Session, error) {
	email = NormalizeEmail(email)

	if _, err := p.users.GetByEmail(ctx, email); err == nil {
		return nil, authsync.ErrUserExists.Clone()
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	record := &UserRecord{
		Email:          email,
		Phone:          profile.Phone,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
		PasswordHash:   hash,
		EmailConfirmed: !p.config.RequireConfirmation,
		Metadata:       profile.Metadata,
	}

	if id, err := hashid.NewUUID(email); err == nil {
		record.ID = id
	} else {
		record.ID = uuid.New()
	}

	record, err = p.users.Create(ctx, record)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	if p.config.RequireConfirmation {
		p.logger.Info("signup stored, confirmation pending for %s", email)
		return nil, nil
	}

	sess, err := p.openSession(record)
	if err != nil {
		return nil, err
	}

	p.adopt(sess, authsync.EventSignedIn)
	return sess, nil
}

// SignOut implements authsync.Provider. Signing out while signed out is a
// no-op and no event fires.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if had {
		go p.events.Emit(authsync.EventSignedOut, nil)
	}

	return nil
}

// Refresh reissues the current session's token and announces it as
// TOKEN_REFRESHED. Tests use this to simulate out-of-band rotation.
func (p *Provider) Refresh(ctx context.Context) (*authsync.Session, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	if sess == nil || sess.User == nil {
		return nil, authsync.ErrSessionMissing.Clone()
	}

	record, err := p.users.GetByEmail(ctx, sess.User.Email)
	if err != nil {
		return nil, err
	}

	next, err := p.openSession(record)
	if err != nil {
		return nil, err
	}

	p.adopt(next, authsync.EventTokenRefreshed)
	return next, nil
}

// ConfirmEmail completes the confirmation gate for an identity.
func (p *Provider) ConfirmEmail(ctx context.Context, email string) error {
	return p.users.ConfirmEmail(ctx, email)
}

func (p *Provider) openSession(record *UserRecord) (*authsync.Session, error) {
	now := p.clock()

	token, expiresAt, err := p.tokens.issue(record, now)
	if err != nil {
		return nil, err
	}

	return &authsync.Session{
		AccessToken:  token,
		TokenType:    "bearer",
		RefreshToken: uuid.New().String(),
		ExpiresAt:    &expiresAt,
		User:         record.toUser(),
	}, nil
}

func (p *Provider) adopt(sess *authsync.Session, event authsync.ChangeEvent) {
	p.mu.Lock()
	p.current = sess
	p.mu.Unlock()

	go p.events.Emit(event, sess)
}
