// Package identity defines the client's view of the remote identity service:
// the session record, the auth event stream, and the Client interface the
// session layer is built against. A GoTrue-style HTTP implementation lives in
// httpclient.go; tests substitute fakes.
package identity

import (
	"context"
	"fmt"
	"time"
)

// Session is the authoritative identity record. It is replaced wholesale on
// every transition and never partially mutated.
type Session struct {
	UserID          string
	Email           string
	EmailVerifiedAt *time.Time
}

// Verified reports whether the account's email has been confirmed.
func (s *Session) Verified() bool {
	return s != nil && s.EmailVerifiedAt != nil
}

// EventType enumerates the push events delivered by the identity service.
type EventType string

const (
	EventSignedIn         EventType = "SIGNED_IN"
	EventSignedOut        EventType = "SIGNED_OUT"
	EventPasswordRecovery EventType = "PASSWORD_RECOVERY"
	EventTokenRefreshed   EventType = "TOKEN_REFRESHED"
	EventUserUpdated      EventType = "USER_UPDATED"
)

// Event is one push notification. Session is nil for SIGNED_OUT and may be
// nil for PASSWORD_RECOVERY.
type Event struct {
	Type    EventType
	Session *Session
}

// ErrorKind tags a failed identity call so callers can branch without
// inspecting messages.
type ErrorKind string

const (
	KindBadCredentials   ErrorKind = "bad_credentials"
	KindNetwork          ErrorKind = "network"
	KindExchangeRejected ErrorKind = "exchange_rejected"
	KindServer           ErrorKind = "server"
)

// Error is the tagged outcome of a failed identity call.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identity: %s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is an identity Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	ie, ok := err.(*Error)
	return ok && ie.Kind == kind
}

// Client is the identity collaborator consumed by the session layer.
//
// GetCurrentUser returns (nil, nil) when no session exists. SubscribeEvents
// delivers events synchronously, in order; the returned function removes the
// subscription and must be called on teardown.
type Client interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	GetCurrentUser(ctx context.Context) (*Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	UpdateUser(ctx context.Context, password string) (*Session, error)
	ResendVerification(ctx context.Context, email string) error
	RequestPasswordReset(ctx context.Context, email, redirectURL string) error
	SubscribeEvents(handler func(Event)) (unsubscribe func())
}
