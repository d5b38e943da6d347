package session

import (
	"context"
	"sync"

	"github.com/mbarsukov/passvault/internal/identity"
	"github.com/mbarsukov/passvault/internal/logging"
	"github.com/mbarsukov/passvault/internal/navigation"
)

// Recovery ticket URL parameter names. The same three parameters may arrive
// in the query string or the fragment.
const (
	paramType         = "type"
	paramAccessToken  = "access_token"
	paramRefreshToken = "refresh_token"

	ticketTypeRecovery = "recovery"
)

// Ticket is a one-shot recovery token pair lifted from the URL.
type Ticket struct {
	AccessToken  string
	RefreshToken string
}

// DetectTicket applies the recovery detection rule to a location: type must
// be "recovery" and both tokens present, each merged across query and
// fragment with the query taking priority.
func DetectTicket(loc navigation.Location) (Ticket, bool) {
	if loc.Param(paramType) != ticketTypeRecovery {
		return Ticket{}, false
	}

	t := Ticket{
		AccessToken:  loc.Param(paramAccessToken),
		RefreshToken: loc.Param(paramRefreshToken),
	}
	if t.AccessToken == "" || t.RefreshToken == "" {
		return Ticket{}, false
	}
	return t, true
}

// RecoveryHandler detects and consumes one-shot recovery tickets delivered
// via the URL. Consumption is idempotent: once the recovery form is showing,
// re-detecting the same parameters does nothing.
type RecoveryHandler struct {
	identity identity.Client
	nav      navigation.Navigator
	logger   logging.Logger

	mu          sync.Mutex
	showingForm bool
}

func NewRecoveryHandler(client identity.Client, nav navigation.Navigator, logger logging.Logger) *RecoveryHandler {
	return &RecoveryHandler{identity: client, nav: nav, logger: logger}
}

// ShowingForm reports whether the recovery form is active.
func (h *RecoveryHandler) ShowingForm() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.showingForm
}

// Reset clears the recovery form state (sign-out, teardown).
func (h *RecoveryHandler) Reset() {
	h.mu.Lock()
	h.showingForm = false
	h.mu.Unlock()
}

// Detect runs the transition rule against the current location. If a ticket
// is present and the form is not already showing, the tokens are exchanged
// for a recovery session and the parameters are stripped from the URL so a
// reload cannot resubmit them. Exchange failure is logged only; state is
// left unchanged. Safe to call repeatedly.
func (h *RecoveryHandler) Detect(ctx context.Context) bool {
	loc := h.nav.Current()
	ticket, ok := DetectTicket(loc)
	if !ok {
		return h.ShowingForm()
	}

	h.mu.Lock()
	if h.showingForm {
		h.mu.Unlock()
		return true
	}
	h.mu.Unlock()

	if _, err := h.identity.SetSession(ctx, ticket.AccessToken, ticket.RefreshToken); err != nil {
		h.logger.Error(ctx, "recovery token exchange failed", "error", err)
		return false
	}

	h.mu.Lock()
	h.showingForm = true
	h.mu.Unlock()

	h.stripTicket(loc)
	return true
}

// stripTicket rewrites the URL in place with the ticket parameters removed.
// The rewrite is idempotent and does not navigate.
func (h *RecoveryHandler) stripTicket(loc navigation.Location) {
	for _, p := range []string{paramType, paramAccessToken, paramRefreshToken} {
		loc.Query.Del(p)
		loc.Fragment.Del(p)
	}
	loc.Path = pathLogin
	h.nav.Replace(loc)
}
