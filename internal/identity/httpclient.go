package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mbarsukov/passvault/internal/logging"
)

// refreshLead is how far ahead of access-token expiry the background refresh
// fires.
const refreshLead = 30 * time.Second

// HTTPClient talks to a GoTrue-style identity API over REST/JSON. It holds
// the current access/refresh token pair, refreshes the access token in the
// background ahead of expiry, and emits auth events on its Broadcaster after
// every state-changing call.
type HTTPClient struct {
	baseURL string
	anonKey string
	httpc   *http.Client
	logger  logging.Logger
	events  *Broadcaster

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	session      *Session
	stopRefresh  chan struct{}
}

// NewHTTPClient constructs a client for the identity API at baseURL.
// anonKey is sent as the api key header on every request.
func NewHTTPClient(baseURL, anonKey string, logger logging.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		anonKey: anonKey,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		events:  NewBroadcaster(),
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         userPayload `json:"user"`
}

type userPayload struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

func (u *userPayload) toSession() *Session {
	return &Session{UserID: u.ID, Email: u.Email, EmailVerifiedAt: u.EmailConfirmedAt}
}

type apiError struct {
	Message     string `json:"msg"`
	Description string `json:"error_description"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, auth bool, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindServer, Message: err.Error()}
		}
		rd = bytes.NewReader(b)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return &Error{Kind: KindServer, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if auth {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		msg := ae.Message
		if msg == "" {
			msg = ae.Description
		}
		if msg == "" {
			msg = resp.Status
		}
		kind := KindServer
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			kind = KindBadCredentials
		}
		return &Error{Kind: kind, Message: msg}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &Error{Kind: KindServer, Message: fmt.Sprintf("decode response: %v", err)}
		}
	}
	return nil
}

// adopt installs a token pair and session under the lock and (re)schedules
// the background refresh.
func (c *HTTPClient) adopt(tr *tokenResponse) *Session {
	sess := tr.User.toSession()

	c.mu.Lock()
	c.accessToken = tr.AccessToken
	c.refreshToken = tr.RefreshToken
	c.session = sess
	if c.stopRefresh != nil {
		close(c.stopRefresh)
	}
	stop := make(chan struct{})
	c.stopRefresh = stop
	c.mu.Unlock()

	if in := refreshIn(tr.AccessToken, tr.ExpiresIn); in > 0 {
		go c.refreshLoop(stop, in)
	}
	return sess
}

// refreshIn derives the delay before the next token refresh, preferring the
// exp claim of the access token over the advertised expires_in.
func refreshIn(accessToken string, expiresIn int64) time.Duration {
	until := time.Duration(expiresIn) * time.Second

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			until = time.Until(exp.Time)
		}
	}
	return until - refreshLead
}

func (c *HTTPClient) refreshLoop(stop chan struct{}, in time.Duration) {
	t := time.NewTimer(in)
	defer t.Stop()

	select {
	case <-stop:
		return
	case <-t.C:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c.mu.Lock()
	refresh := c.refreshToken
	c.mu.Unlock()
	if refresh == "" {
		return
	}

	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refresh}, false, &tr)
	if err != nil {
		c.logger.Warn(ctx, "token refresh failed", "error", err)
		return
	}

	sess := c.adopt(&tr)
	c.events.Emit(Event{Type: EventTokenRefreshed, Session: sess})
}

// SignIn authenticates with email and password. On success the session is
// adopted and SIGNED_IN is emitted.
func (c *HTTPClient) SignIn(ctx context.Context, email, password string) (*Session, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}},
		map[string]string{"email": email, "password": password}, false, &tr)
	if err != nil {
		return nil, err
	}

	sess := c.adopt(&tr)
	c.events.Emit(Event{Type: EventSignedIn, Session: sess})
	return sess, nil
}

// SignUp registers a new account. The account starts unverified; no session
// is adopted until the user signs in.
func (c *HTTPClient) SignUp(ctx context.Context, email, password string) error {
	return c.do(ctx, http.MethodPost, "/signup", nil,
		map[string]string{"email": email, "password": password}, false, nil)
}

// SignOut revokes the session server-side (best effort), drops the local
// token pair unconditionally, and emits SIGNED_OUT.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/logout", nil, nil, true, nil)
	if err != nil {
		c.logger.Warn(ctx, "server-side logout failed", "error", err)
	}

	c.mu.Lock()
	c.accessToken = ""
	c.refreshToken = ""
	c.session = nil
	if c.stopRefresh != nil {
		close(c.stopRefresh)
		c.stopRefresh = nil
	}
	c.mu.Unlock()

	c.events.Emit(Event{Type: EventSignedOut})
	return nil
}

// GetCurrentUser fetches the current user for the held access token.
// It returns (nil, nil) when no session exists or the token is rejected.
func (c *HTTPClient) GetCurrentUser(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	if token == "" {
		return nil, nil
	}

	var up userPayload
	if err := c.do(ctx, http.MethodGet, "/user", nil, nil, true, &up); err != nil {
		if IsKind(err, KindBadCredentials) {
			return nil, nil
		}
		return nil, err
	}

	sess := up.toSession()
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	return sess, nil
}

// SetSession adopts an externally delivered token pair (a recovery ticket).
// The access token's claims identify the user; the authoritative user record
// is then fetched over the wire. SIGNED_IN is emitted on success.
func (c *HTTPClient) SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, &Error{Kind: KindExchangeRejected, Message: fmt.Sprintf("malformed access token: %v", err)}
	}

	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && time.Now().After(exp.Time) {
		// Expired ticket: redeem the refresh token instead.
		var tr tokenResponse
		err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}},
			map[string]string{"refresh_token": refreshToken}, false, &tr)
		if err != nil {
			return nil, &Error{Kind: KindExchangeRejected, Message: err.Error()}
		}
		sess := c.adopt(&tr)
		c.events.Emit(Event{Type: EventSignedIn, Session: sess})
		return sess, nil
	}

	tr := tokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}
	c.adopt(&tr)

	sess, err := c.GetCurrentUser(ctx)
	if err != nil {
		return nil, &Error{Kind: KindExchangeRejected, Message: err.Error()}
	}
	if sess == nil {
		return nil, &Error{Kind: KindExchangeRejected, Message: "token rejected"}
	}

	c.events.Emit(Event{Type: EventSignedIn, Session: sess})
	return sess, nil
}

// UpdateUser changes the authenticated user's password and emits
// USER_UPDATED with the refreshed session.
func (c *HTTPClient) UpdateUser(ctx context.Context, password string) (*Session, error) {
	var up userPayload
	err := c.do(ctx, http.MethodPut, "/user", nil, map[string]string{"password": password}, true, &up)
	if err != nil {
		return nil, err
	}

	sess := up.toSession()
	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()

	c.events.Emit(Event{Type: EventUserUpdated, Session: sess})
	return sess, nil
}

// ResendVerification asks the service to send the signup confirmation email
// again.
func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/resend", nil,
		map[string]string{"type": "signup", "email": email}, false, nil)
}

// RequestPasswordReset triggers a recovery email carrying a one-shot ticket
// that links back to redirectURL.
func (c *HTTPClient) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	q := url.Values{}
	if redirectURL != "" {
		q.Set("redirect_to", redirectURL)
	}
	return c.do(ctx, http.MethodPost, "/recover", q, map[string]string{"email": email}, false, nil)
}

// SubscribeEvents registers a handler on the client's event stream.
func (c *HTTPClient) SubscribeEvents(handler func(Event)) func() {
	return c.events.Subscribe(handler)
}

// Close stops the background refresh. Safe to call more than once.
func (c *HTTPClient) Close() {
	c.mu.Lock()
	if c.stopRefresh != nil {
		close(c.stopRefresh)
		c.stopRefresh = nil
	}
	c.mu.Unlock()
}
