// Package session implements the authentication state machine: the
// controller that owns the authoritative session and phase, the recovery
// ticket handler, and the verification poller. All three consume injected
// capabilities (identity client, navigator) rather than ambient state.
package session

import (
	"context"
	"sync"

	"github.com/mbarsukov/passvault/internal/identity"
	"github.com/mbarsukov/passvault/internal/logging"
	"github.com/mbarsukov/passvault/internal/navigation"
)

// Controller is the top-level session state machine. It restores the session
// on start, consumes the identity event stream in delivery order, and
// delegates to the recovery handler and verification poller. At most one
// session is authoritative at any instant; SIGNED_OUT always wins.
type Controller struct {
	identity identity.Client
	nav      navigation.Navigator
	recovery *RecoveryHandler
	poller   *Poller
	logger   logging.Logger

	// onPhase, if set, observes every phase change. Called outside the lock.
	onPhase func(Phase)

	mu             sync.Mutex
	session        *identity.Session
	recoveryActive bool
	phase          Phase
	stopPoller     func()
	unsubEvents    func()
	unsubPop       func()
	started        bool
}

func NewController(client identity.Client, nav navigation.Navigator, logger logging.Logger) *Controller {
	return &Controller{
		identity: client,
		nav:      nav,
		recovery: NewRecoveryHandler(client, nav, logger),
		poller:   NewPoller(client, logger),
		logger:   logger,
		phase:    PhaseAnonymous,
	}
}

// OnPhaseChange registers the phase observer. Must be called before Start.
func (c *Controller) OnPhaseChange(fn func(Phase)) {
	c.onPhase = fn
}

// Recovery exposes the recovery handler (for re-running detection after the
// navigator's location changes).
func (c *Controller) Recovery() *RecoveryHandler {
	return c.recovery
}

// Verification exposes the poller (for resend requests).
func (c *Controller) Verification() *Poller {
	return c.poller
}

// Phase returns the currently active phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns the authoritative session, or nil.
func (c *Controller) Session() *identity.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// derivePhase computes the phase from session + recovery flag. Caller holds
// the lock.
func (c *Controller) derivePhase() Phase {
	switch {
	case c.recoveryActive:
		return PhaseAwaitingRecovery
	case c.session == nil:
		return PhaseAnonymous
	case !c.session.Verified():
		return PhaseAwaitingVerification
	default:
		return PhaseAuthenticated
	}
}

// Start computes the initial phase and begins consuming events.
//
// If the current URL carries a well-formed recovery ticket, the phase is
// AwaitingRecovery and no session restore is attempted. Otherwise the
// identity service is queried for an existing session.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	// Subscribe before detection so events emitted by the token exchange
	// (SIGNED_IN) flow through the rule table.
	c.unsubEvents = c.identity.SubscribeEvents(func(ev identity.Event) {
		c.handleEvent(ctx, ev)
	})
	c.unsubPop = c.nav.OnPopState(func(loc navigation.Location) {
		c.logger.Debug(ctx, "history traversal", "path", loc.Path, "renders", string(PhaseForPath(loc.Path)))
	})

	if _, ok := DetectTicket(c.nav.Current()); ok {
		c.mu.Lock()
		c.recoveryActive = true
		c.session = nil
		c.mu.Unlock()

		c.recovery.Detect(ctx)
		c.reconcile(ctx)
		return
	}

	sess, err := c.identity.GetCurrentUser(ctx)
	if err != nil {
		c.logger.Warn(ctx, "session restore failed", "error", err)
	}

	c.mu.Lock()
	c.session = sess
	c.mu.Unlock()
	c.reconcile(ctx)
}

// Stop tears the controller down: event and popstate subscriptions and any
// active poller are released.
func (c *Controller) Stop() {
	c.mu.Lock()
	stop := c.stopPoller
	c.stopPoller = nil
	unsubEvents := c.unsubEvents
	c.unsubEvents = nil
	unsubPop := c.unsubPop
	c.unsubPop = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if unsubEvents != nil {
		unsubEvents()
	}
	if unsubPop != nil {
		unsubPop()
	}
}

// handleEvent applies the event rule table. Rules are idempotent: replaying
// an event against the same state changes nothing beyond the first
// application.
func (c *Controller) handleEvent(ctx context.Context, ev identity.Event) {
	c.mu.Lock()

	switch ev.Type {
	case identity.EventPasswordRecovery:
		// Overrides any prior state, including Authenticated.
		c.recoveryActive = true
		c.session = nil

	case identity.EventSignedIn:
		if ev.Session == nil {
			c.mu.Unlock()
			return
		}
		_, ticketInURL := DetectTicket(c.nav.Current())
		if c.recoveryActive || ticketInURL {
			// A recovery sign-in never becomes the working session.
			c.recoveryActive = true
			c.session = nil
		} else {
			c.session = ev.Session
		}

	case identity.EventSignedOut:
		// Unconditional reset: session, recovery flag and verification
		// state are all cleared.
		c.session = nil
		c.recoveryActive = false
		c.recovery.Reset()

	case identity.EventUserUpdated:
		if ev.Session != nil && c.session != nil && !c.session.Verified() && ev.Session.Verified() {
			c.session = ev.Session
		}

	default:
		// TOKEN_REFRESHED is consumed by the verification poller.
		c.mu.Unlock()
		return
	}

	c.mu.Unlock()
	c.reconcile(ctx)
}

// completeVerification adopts the verified user delivered by the poller.
func (c *Controller) completeVerification(ctx context.Context, sess *identity.Session) {
	c.mu.Lock()
	if c.session == nil || c.session.Verified() {
		c.mu.Unlock()
		return
	}
	c.session = sess
	c.mu.Unlock()
	c.reconcile(ctx)
}

// reconcile re-derives the phase, starts/stops the verification poller, and
// pushes the phase's path when the phase changed.
func (c *Controller) reconcile(ctx context.Context) {
	c.mu.Lock()

	next := c.derivePhase()
	changed := next != c.phase
	c.phase = next

	var stop func()
	if next != PhaseAwaitingVerification && c.stopPoller != nil {
		stop = c.stopPoller
		c.stopPoller = nil
	}
	if next == PhaseAwaitingVerification && c.stopPoller == nil {
		// Poller.Start only spawns; it never calls back synchronously, so
		// starting under the lock cannot re-enter.
		c.stopPoller = c.poller.Start(ctx, func(sess *identity.Session) {
			c.completeVerification(ctx, sess)
		})
	}
	c.mu.Unlock()

	if stop != nil {
		stop()
	}

	if changed {
		c.nav.Push(navigation.Location{Path: pathForPhase(next)})
		c.logger.Info(ctx, "phase changed", "phase", string(next))
		if c.onPhase != nil {
			c.onPhase(next)
		}
	}
}

// DetectRecovery re-runs ticket detection against the navigator's current
// location, used when a recovery link arrives after Start. Returns whether
// the recovery form is showing.
func (c *Controller) DetectRecovery(ctx context.Context) bool {
	if _, ok := DetectTicket(c.nav.Current()); !ok {
		return c.recovery.ShowingForm()
	}

	c.mu.Lock()
	c.recoveryActive = true
	c.session = nil
	c.mu.Unlock()

	shown := c.recovery.Detect(ctx)
	c.reconcile(ctx)
	return shown
}

// SignIn authenticates and lets the resulting SIGNED_IN event drive the
// transition.
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	_, err := c.identity.SignIn(ctx, email, password)
	return err
}

// SignUp registers a new account. The account starts unverified; the next
// sign-in lands in AwaitingVerification.
func (c *Controller) SignUp(ctx context.Context, email, password string) error {
	return c.identity.SignUp(ctx, email, password)
}

// SignOut ends the session; the SIGNED_OUT event resets every flag.
func (c *Controller) SignOut(ctx context.Context) error {
	return c.identity.SignOut(ctx)
}

// RequestPasswordReset asks for a recovery email linking back to redirectURL.
func (c *Controller) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	return c.identity.RequestPasswordReset(ctx, email, redirectURL)
}

// CompletePasswordReset submits the new password for the recovery session,
// then signs out so the user re-authenticates with the new credential.
func (c *Controller) CompletePasswordReset(ctx context.Context, newPassword string) error {
	if _, err := c.identity.UpdateUser(ctx, newPassword); err != nil {
		return err
	}
	return c.identity.SignOut(ctx)
}
