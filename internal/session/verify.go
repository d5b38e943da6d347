package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mbarsukov/passvault/internal/identity"
	"github.com/mbarsukov/passvault/internal/logging"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultCompleteDelay = 2 * time.Second
)

// Poller watches an unverified account until its email becomes verified.
// Two triggers race: a fixed-interval poll of GetCurrentUser and the push
// event stream. A single fire-once latch guarantees the completion callback
// runs at most once per activation, after a fixed cosmetic delay.
type Poller struct {
	identity identity.Client
	logger   logging.Logger

	// Interval between polls and delay between observing verification and
	// invoking the callback. Both default to 2 s; tests shorten them.
	Interval      time.Duration
	CompleteDelay time.Duration
}

func NewPoller(client identity.Client, logger logging.Logger) *Poller {
	return &Poller{
		identity:      client,
		logger:        logger,
		Interval:      defaultPollInterval,
		CompleteDelay: defaultCompleteDelay,
	}
}

// Start activates the poller. onComplete is invoked with the verified user
// at most once. The returned stop function releases the poll timer and the
// push subscription; after stop, a pending completion is suppressed.
func (p *Poller) Start(ctx context.Context, onComplete func(*identity.Session)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)

	var once sync.Once
	latch := func(sess *identity.Session) {
		if !sess.Verified() {
			return
		}
		once.Do(func() {
			go func() {
				t := time.NewTimer(p.CompleteDelay)
				defer t.Stop()
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					onComplete(sess)
				}
			}()
		})
	}

	unsubscribe := p.identity.SubscribeEvents(func(ev identity.Event) {
		switch ev.Type {
		case identity.EventSignedIn, identity.EventTokenRefreshed, identity.EventUserUpdated:
			if ev.Session.Verified() {
				latch(ev.Session)
			}
		}
	})

	poll := func() {
		sess, err := p.identity.GetCurrentUser(ctx)
		if err != nil {
			p.logger.Debug(ctx, "verification poll failed", "error", err)
			return
		}
		if sess != nil {
			latch(sess)
		}
	}

	go func() {
		defer unsubscribe()

		poll()

		ticker := time.NewTicker(p.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll()
			}
		}
	}()

	return cancel
}

// Resend asks for the verification email to be sent again. Both outcomes are
// surfaced as a transient status message; there is no retry.
func (p *Poller) Resend(ctx context.Context, email string) string {
	if err := p.identity.ResendVerification(ctx, email); err != nil {
		return fmt.Sprintf("Failed to resend verification email: %v", err)
	}
	return "Verification email sent again!"
}
