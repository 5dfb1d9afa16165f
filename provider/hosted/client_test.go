package hosted_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchfast/authsync"
	"github.com/stitchfast/authsync/provider/hosted"
)

// identityStub is a scripted identity service. Each route handler is
// swapped per test; unset routes 404.
type identityStub struct {
	server *httptest.Server

	mu      sync.Mutex
	token   http.HandlerFunc
	signup  http.HandlerFunc
	logout  http.HandlerFunc
	apikeys []string
}

func newIdentityStub(t *testing.T) *identityStub {
	t.Helper()

	stub := &identityStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", stub.dispatch(func() http.HandlerFunc { return stub.token }))
	mux.HandleFunc("/signup", stub.dispatch(func() http.HandlerFunc { return stub.signup }))
	mux.HandleFunc("/logout", stub.dispatch(func() http.HandlerFunc { return stub.logout }))

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)

	return stub
}

func (s *identityStub) dispatch(pick func() http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.apikeys = append(s.apikeys, r.Header.Get("apikey"))
		handler := pick()
		s.mu.Unlock()

		if handler == nil {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}
}

func (s *identityStub) client(t *testing.T, opts ...hosted.Option) *hosted.Client {
	t.Helper()

	c := hosted.New(hosted.Config{
		BaseURL: s.server.URL,
		APIKey:  "public-anon-key",
	}, opts...)
	t.Cleanup(c.Close)

	return c
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func tokenBody(email string, expiresIn int64) map[string]any {
	return map[string]any{
		"access_token":  "at-" + uuid.New().String(),
		"token_type":    "bearer",
		"expires_in":    expiresIn,
		"refresh_token": "rt-" + uuid.New().String(),
		"user": map[string]any{
			"id":    uuid.New().String(),
			"email": email,
			"user_metadata": map[string]any{
				"first_name": "Ada",
				"last_name":  "Lovelace",
			},
		},
	}
}

func waitForEvent(t *testing.T, got func() []authsync.ChangeEvent, want authsync.ChangeEvent) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, e := range got() {
			if e == want {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func recordEvents(c *hosted.Client) func() []authsync.ChangeEvent {
	var mu sync.Mutex
	var events []authsync.ChangeEvent
	c.OnSessionChange(func(event authsync.ChangeEvent, _ *authsync.Session) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
	})
	return func() []authsync.ChangeEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]authsync.ChangeEvent(nil), events...)
	}
}

func TestSignInPasswordGrant(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, "correct-horse-battery", body["password"])

		respondJSON(w, http.StatusOK, tokenBody("ada@example.com", 3600))
	}

	client := stub.client(t)
	events := recordEvents(client)

	sess, err := client.SignIn(context.Background(), "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.NotEmpty(t, sess.AccessToken)
	require.NotNil(t, sess.User)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, "Ada", sess.User.FirstName)
	require.NotNil(t, sess.ExpiresAt)
	assert.False(t, sess.Expired(time.Now()))

	waitForEvent(t, events, authsync.EventSignedIn)

	current, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.AccessToken, current.AccessToken)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.NotEmpty(t, stub.apikeys)
	assert.Equal(t, "public-anon-key", stub.apikeys[0])
}

func TestSignInInvalidCredentials(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error_code": "invalid_credentials",
			"msg":        "Invalid login credentials",
		})
	}

	client := stub.client(t)

	_, err := client.SignIn(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, authsync.TextCodeInvalidCredentials, authsync.NormalizeError(err).Name)
}

func TestSignInLegacyErrorShape(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		})
	}

	client := stub.client(t)

	_, err := client.SignIn(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.Equal(t, authsync.TextCodeInvalidCredentials, authsync.NormalizeError(err).Name)
}

func TestSignInUnknownErrorCodeKeptAsName(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusTooManyRequests, map[string]any{
			"error_code": "over_request_rate_limit",
			"msg":        "Request rate limit reached",
		})
	}

	client := stub.client(t)

	_, err := client.SignIn(context.Background(), "ada@example.com", "pw")
	require.Error(t, err)

	authErr := authsync.NormalizeError(err)
	assert.Equal(t, "OVER_REQUEST_RATE_LIMIT", authErr.Name)
	assert.Equal(t, "Request rate limit reached", authErr.Message)
}

func TestSignUpConfirmationPending(t *testing.T) {
	stub := newIdentityStub(t)
	stub.signup = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new@example.com", body["email"])

		data, _ := body["data"].(map[string]any)
		assert.Equal(t, "Ada", data["first_name"])

		// No tokens: the tenant requires email confirmation.
		respondJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"id":    uuid.New().String(),
				"email": "new@example.com",
			},
		})
	}

	client := stub.client(t)
	events := recordEvents(client)

	sess, err := client.SignUp(context.Background(), "new@example.com", "correct-horse-battery", authsync.Profile{
		FirstName: "Ada",
	})
	require.NoError(t, err)
	assert.Nil(t, sess)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, events())

	current, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	stub := newIdentityStub(t)
	stub.signup = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
	}

	client := stub.client(t)

	_, err := client.SignUp(context.Background(), "dup@example.com", "correct-horse-battery", authsync.Profile{})
	require.Error(t, err)
	assert.Equal(t, authsync.TextCodeUserExists, authsync.NormalizeError(err).Name)
}

func TestRefreshRotatesSessionKeepingUser(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("grant_type") {
		case "password":
			respondJSON(w, http.StatusOK, tokenBody("ada@example.com", 3600))
		case "refresh_token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body["refresh_token"])

			// Refresh responses omit the user record.
			respondJSON(w, http.StatusOK, map[string]any{
				"access_token":  "at-" + uuid.New().String(),
				"token_type":    "bearer",
				"expires_in":    3600,
				"refresh_token": "rt-" + uuid.New().String(),
			})
		default:
			http.NotFound(w, r)
		}
	}

	client := stub.client(t)
	events := recordEvents(client)

	first, err := client.SignIn(context.Background(), "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)

	next, err := client.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.NotEqual(t, first.AccessToken, next.AccessToken)
	require.NotNil(t, next.User)
	assert.Equal(t, first.User.Email, next.User.Email)

	waitForEvent(t, events, authsync.EventTokenRefreshed)
}

func TestRefreshWithoutSession(t *testing.T) {
	stub := newIdentityStub(t)
	client := stub.client(t)

	_, err := client.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, authsync.TextCodeSessionMissing, authsync.NormalizeError(err).Name)
}

func TestCurrentSessionWithoutSignIn(t *testing.T) {
	stub := newIdentityStub(t)
	client := stub.client(t)

	sess, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSignOutRevokesAndAnnounces(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, tokenBody("ada@example.com", 3600))
	}

	var revoked bool
	stub.logout = func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		revoked = true
		w.WriteHeader(http.StatusNoContent)
	}

	client := stub.client(t)
	events := recordEvents(client)

	_, err := client.SignIn(context.Background(), "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)

	require.NoError(t, client.SignOut(context.Background()))
	assert.True(t, revoked)
	waitForEvent(t, events, authsync.EventSignedOut)

	sess, err := client.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestSignOutSurvivesRevokeFailure(t *testing.T) {
	stub := newIdentityStub(t)
	stub.token = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, tokenBody("ada@example.com", 3600))
	}
	stub.logout = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusInternalServerError, map[string]any{"msg": "boom"})
	}

	client := stub.client(t)
	events := recordEvents(client)

	_, err := client.SignIn(context.Background(), "ada@example.com", "correct-horse-battery")
	require.NoError(t, err)

	require.NoError(t, client.SignOut(context.Background()))
	waitForEvent(t, events, authsync.EventSignedOut)
}

func TestSignOutWhileSignedOut(t *testing.T) {
	stub := newIdentityStub(t)
	client := stub.client(t)
	events := recordEvents(client)

	require.NoError(t, client.SignOut(context.Background()))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, events())
}
