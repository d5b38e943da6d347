package identity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbarsukov/passvault/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// makeToken builds a signed JWT whose exp lies close enough to now that the
// client does not schedule a background refresh during the test.
func makeToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": "bob@example.com",
		"exp":   exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func collectEvents(c *HTTPClient) *[]Event {
	var events []Event
	c.SubscribeEvents(func(ev Event) { events = append(events, ev) })
	return &events
}

func TestHTTPClient_SignIn(t *testing.T) {
	verifiedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	token := makeToken(t, "u1", time.Now().Add(10*time.Second))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		require.Equal(t, "anon-key", r.Header.Get("apikey"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "bob@example.com", body["email"])
		require.Equal(t, "p@ss", body["password"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"refresh_token": "r1",
			"expires_in":    10,
			"user": map[string]any{
				"id":                 "u1",
				"email":              "bob@example.com",
				"email_confirmed_at": verifiedAt,
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "anon-key", testLogger())
	defer c.Close()
	events := collectEvents(c)

	sess, err := c.SignIn(context.Background(), "bob@example.com", "p@ss")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "bob@example.com", sess.Email)
	assert.True(t, sess.Verified())

	require.Len(t, *events, 1)
	assert.Equal(t, EventSignedIn, (*events)[0].Type)
	assert.Equal(t, sess, (*events)[0].Session)
}

func TestHTTPClient_SignIn_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error_description": "Invalid login credentials"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()

	sess, err := c.SignIn(context.Background(), "bob@example.com", "wrong")
	assert.Nil(t, sess)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindBadCredentials))
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestHTTPClient_SignIn_NetworkError(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:1", "", testLogger())
	defer c.Close()

	_, err := c.SignIn(context.Background(), "bob@example.com", "p")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork))
}

func TestHTTPClient_GetCurrentUser_NoSession(t *testing.T) {
	c := NewHTTPClient("http://unused.invalid", "", testLogger())
	defer c.Close()

	sess, err := c.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestHTTPClient_SetSession(t *testing.T) {
	token := makeToken(t, "u1", time.Now().Add(10*time.Second))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user", r.URL.Path)
		require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "u1", "email": "bob@example.com"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()
	events := collectEvents(c)

	sess, err := c.SetSession(context.Background(), token, "r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.False(t, sess.Verified())

	require.Len(t, *events, 1)
	assert.Equal(t, EventSignedIn, (*events)[0].Type)
}

func TestHTTPClient_SetSession_ExpiredTokenUsesRefreshGrant(t *testing.T) {
	expired := makeToken(t, "u1", time.Now().Add(-time.Minute))
	fresh := makeToken(t, "u1", time.Now().Add(10*time.Second))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/token", r.URL.Path)
		require.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "r1", body["refresh_token"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fresh,
			"refresh_token": "r2",
			"expires_in":    10,
			"user":          map[string]any{"id": "u1", "email": "bob@example.com"},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()

	sess, err := c.SetSession(context.Background(), expired, "r1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
}

func TestHTTPClient_SetSession_Rejected(t *testing.T) {
	token := makeToken(t, "u1", time.Now().Add(10*time.Second))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()

	sess, err := c.SetSession(context.Background(), token, "r1")
	assert.Nil(t, sess)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindExchangeRejected))
}

func TestHTTPClient_SetSession_MalformedToken(t *testing.T) {
	c := NewHTTPClient("http://unused.invalid", "", testLogger())
	defer c.Close()

	_, err := c.SetSession(context.Background(), "not-a-jwt", "r1")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindExchangeRejected))
}

func TestHTTPClient_SignOut(t *testing.T) {
	token := makeToken(t, "u1", time.Now().Add(10*time.Second))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  token,
				"refresh_token": "r1",
				"expires_in":    10,
				"user":          map[string]any{"id": "u1", "email": "bob@example.com"},
			})
		case "/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()

	_, err := c.SignIn(context.Background(), "bob@example.com", "p@ss")
	require.NoError(t, err)

	events := collectEvents(c)
	require.NoError(t, c.SignOut(context.Background()))

	require.Len(t, *events, 1)
	assert.Equal(t, EventSignedOut, (*events)[0].Type)
	assert.Nil(t, (*events)[0].Session)

	sess, err := c.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestHTTPClient_UpdateUser(t *testing.T) {
	token := makeToken(t, "u1", time.Now().Add(10*time.Second))
	verifiedAt := time.Now().UTC().Truncate(time.Second)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/user", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "new-password", body["password"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                 "u1",
			"email":              "bob@example.com",
			"email_confirmed_at": verifiedAt,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()
	c.accessToken = token
	events := collectEvents(c)

	sess, err := c.UpdateUser(context.Background(), "new-password")
	require.NoError(t, err)
	assert.True(t, sess.Verified())

	require.Len(t, *events, 1)
	assert.Equal(t, EventUserUpdated, (*events)[0].Type)
}

func TestHTTPClient_RequestPasswordReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recover", r.URL.Path)
		require.Equal(t, "https://vault.example.com/", r.URL.Query().Get("redirect_to"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "bob@example.com", body["email"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()

	err := c.RequestPasswordReset(context.Background(), "bob@example.com", "https://vault.example.com/")
	require.NoError(t, err)
}

func TestHTTPClient_ResendVerification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/resend", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "signup", body["type"])
		require.Equal(t, "bob@example.com", body["email"])
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", testLogger())
	defer c.Close()

	require.NoError(t, c.ResendVerification(context.Background(), "bob@example.com"))
}

func TestRefreshIn_PrefersExpClaim(t *testing.T) {
	token := makeToken(t, "u1", time.Now().Add(2*time.Minute))

	in := refreshIn(token, 3600)
	assert.Greater(t, in, time.Minute)
	assert.Less(t, in, 2*time.Minute)

	// Unparsable token falls back to expires_in.
	in = refreshIn("junk", 120)
	assert.InDelta(t, float64(90*time.Second), float64(in), float64(time.Second))
}

var _ Client = (*HTTPClient)(nil)
