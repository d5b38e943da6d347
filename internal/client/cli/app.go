// Package cli is the interactive user surface of the passvault client: a
// REPL that drives the session controller and the vault store.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/mbarsukov/passvault/internal/backup"
	"github.com/mbarsukov/passvault/internal/client/config"
	"github.com/mbarsukov/passvault/internal/cryptox"
	"github.com/mbarsukov/passvault/internal/identity"
	"github.com/mbarsukov/passvault/internal/logging"
	"github.com/mbarsukov/passvault/internal/navigation"
	"github.com/mbarsukov/passvault/internal/records"
	"github.com/mbarsukov/passvault/internal/session"
	"github.com/mbarsukov/passvault/internal/vault"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	identity   *identity.HTTPClient
	nav        *navigation.Memory
	controller *session.Controller
	store      *vault.Store
	backup     *backup.Service
	db         *sql.DB
	reader     *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := records.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	idClient := identity.NewHTTPClient(c.IdentityBaseURL, c.IdentityAnonKey, logger)
	nav := navigation.NewMemory(navigation.Location{Path: "/"})

	controller := session.NewController(idClient, nav, logger)
	controller.Verification().Interval = c.PollInterval
	controller.Verification().CompleteDelay = c.CompleteDelay

	engine := cryptox.NewEngine(c.VaultKey)
	store := vault.NewStore(records.NewPostgresRepository(db), engine, logger)

	app := &App{
		config:     c,
		logger:     logger,
		identity:   idClient,
		nav:        nav,
		controller: controller,
		store:      store,
		backup:     backup.NewService(backup.Config{
			Endpoint:  c.S3BaseEndpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
		}, logger),
		db:     db,
		reader: bufio.NewReader(os.Stdin),
	}

	controller.OnPhaseChange(app.onPhaseChange)
	return app, nil
}

// onPhaseChange mirrors the original flow: the vault is fetched exactly when
// the session becomes authenticated and verified.
func (a *App) onPhaseChange(p session.Phase) {
	ctx := context.Background()

	switch p {
	case session.PhaseAuthenticated:
		sess := a.controller.Session()
		if sess == nil {
			return
		}
		if err := a.store.FetchAll(ctx, sess.UserID); err != nil {
			printlnFn("Error loading vault:", err)
			return
		}
		printlnFn(fmt.Sprintf("Vault unlocked: %d entries.", len(a.store.Items())))
	case session.PhaseAwaitingVerification:
		printlnFn("Please verify your email. We'll detect it automatically; type 'resend' to send the link again.")
	case session.PhaseAwaitingRecovery:
		printlnFn("Password recovery active. Type 'reset' to set a new password.")
	case session.PhaseAnonymous:
		printlnFn("Signed out.")
	}
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.controller.Start(ctx)
	a.Root(ctx)
}

func (a *App) Close() {
	a.controller.Stop()
	a.identity.Close()
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *App) isAuthenticated() bool {
	return a.controller.Phase() == session.PhaseAuthenticated
}
