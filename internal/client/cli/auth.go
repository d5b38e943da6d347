package cli

import (
	"context"
	"os"

	"github.com/mbarsukov/passvault/internal/session"
)

func (a *App) signup(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	password, err := GetPassword("Password", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}

	if err := a.controller.SignUp(ctx, email, password); err != nil {
		printlnFn("Signup failed:", err)
		return
	}
	printlnFn("Account created. Check your email for the verification link, then login.")
}

func (a *App) login(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	password, err := GetPassword("Password", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}

	if err := a.controller.SignIn(ctx, email, password); err != nil {
		printlnFn("Login failed:", err)
	}
}

func (a *App) logout(ctx context.Context) {
	if err := a.controller.SignOut(ctx); err != nil {
		printlnFn("Logout error:", err)
	}
}

func (a *App) forgotPassword(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Enter your email", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}

	if err := a.controller.RequestPasswordReset(ctx, email, a.config.RecoveryRedirectURL); err != nil {
		printlnFn("Error:", err)
		return
	}
	printlnFn("Password reset link sent to your email!")
}

// recoverFromLink points the navigator at a pasted recovery link and re-runs
// ticket detection, the CLI equivalent of opening the emailed URL.
func (a *App) recoverFromLink(ctx context.Context, raw string) {
	loc, err := a.nav.ParseAndReplace(raw)
	if err != nil {
		printlnFn("Invalid link:", err)
		return
	}

	if _, ok := session.DetectTicket(loc); !ok {
		printlnFn("The link does not carry a recovery ticket.")
		return
	}

	if !a.controller.DetectRecovery(ctx) {
		printlnFn("Recovery link could not be redeemed.")
	}
}

func (a *App) resetPassword(ctx context.Context) {
	if a.controller.Phase() != session.PhaseAwaitingRecovery {
		printlnFn("No password recovery in progress.")
		return
	}

	newPassword, err := GetPassword("New Password", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	confirm, err := GetPassword("Confirm New Password", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	if newPassword != confirm {
		printlnFn("Passwords don't match!")
		return
	}

	if err := a.controller.CompletePasswordReset(ctx, newPassword); err != nil {
		printlnFn("Error:", err)
		return
	}
	printlnFn("Password updated successfully! You can now login.")
}

func (a *App) resendVerification(ctx context.Context) {
	sess := a.controller.Session()
	if sess == nil || a.controller.Phase() != session.PhaseAwaitingVerification {
		printlnFn("No verification in progress.")
		return
	}
	printlnFn(a.controller.Verification().Resend(ctx, sess.Email))
}
