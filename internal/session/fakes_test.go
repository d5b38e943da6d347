package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/mbarsukov/passvault/internal/identity"
	"github.com/mbarsukov/passvault/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func verifiedSession(id string) *identity.Session {
	at := time.Now()
	return &identity.Session{UserID: id, Email: id + "@example.com", EmailVerifiedAt: &at}
}

func unverifiedSession(id string) *identity.Session {
	return &identity.Session{UserID: id, Email: id + "@example.com"}
}

// fakeIdentity is an in-memory identity.Client. The session it reports and
// the outcome of each call are scripted per test; events flow through a real
// broadcaster so delivery order matches production.
type fakeIdentity struct {
	events *identity.Broadcaster

	mu              sync.Mutex
	current         *identity.Session
	getErr          error
	getCalls        int
	exchangeResult  *identity.Session
	exchangeErr     error
	exchangeCalls   int
	updateResult    *identity.Session
	updateErr       error
	resendErr       error
	signOutCalls    int
	recoverRequests []string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{events: identity.NewBroadcaster()}
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	f.mu.Lock()
	sess := f.current
	f.mu.Unlock()
	f.events.Emit(identity.Event{Type: identity.EventSignedIn, Session: sess})
	return sess, nil
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) error {
	return nil
}

func (f *fakeIdentity) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.current = nil
	f.signOutCalls++
	f.mu.Unlock()
	f.events.Emit(identity.Event{Type: identity.EventSignedOut})
	return nil
}

func (f *fakeIdentity) GetCurrentUser(ctx context.Context) (*identity.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.current, nil
}

func (f *fakeIdentity) SetSession(ctx context.Context, accessToken, refreshToken string) (*identity.Session, error) {
	f.mu.Lock()
	f.exchangeCalls++
	err := f.exchangeErr
	sess := f.exchangeResult
	if err == nil {
		f.current = sess
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	f.events.Emit(identity.Event{Type: identity.EventSignedIn, Session: sess})
	return sess, nil
}

func (f *fakeIdentity) UpdateUser(ctx context.Context, password string) (*identity.Session, error) {
	f.mu.Lock()
	err := f.updateErr
	sess := f.updateResult
	if err == nil && sess != nil {
		f.current = sess
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	f.events.Emit(identity.Event{Type: identity.EventUserUpdated, Session: sess})
	return sess, nil
}

func (f *fakeIdentity) ResendVerification(ctx context.Context, email string) error {
	return f.resendErr
}

func (f *fakeIdentity) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	f.mu.Lock()
	f.recoverRequests = append(f.recoverRequests, email)
	f.mu.Unlock()
	return nil
}

func (f *fakeIdentity) SubscribeEvents(handler func(identity.Event)) func() {
	return f.events.Subscribe(handler)
}

func (f *fakeIdentity) setCurrent(sess *identity.Session) {
	f.mu.Lock()
	f.current = sess
	f.mu.Unlock()
}

func (f *fakeIdentity) exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchangeCalls
}

var _ identity.Client = (*fakeIdentity)(nil)
