package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mbarsukov/passvault/internal/session"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = func(args ...any) { fmt.Println(args...) }

func (a *App) getStatus() string {
	s := string(a.controller.Phase())
	if sess := a.controller.Session(); sess != nil {
		s = sess.Email + " " + s
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) printHelp() {
	switch a.controller.Phase() {
	case session.PhaseAuthenticated:
		printlnFn("Available commands: (l)ist [term], show <id>, add, update <id>, delete <id>, refresh, backup, back, forward, status, logout, exit")
	case session.PhaseAwaitingRecovery:
		printlnFn("Available commands: reset, status, logout, exit")
	case session.PhaseAwaitingVerification:
		printlnFn("Available commands: resend, status, logout, exit")
	default:
		printlnFn("Available commands: signup, login, forgot, recover <url>, status, exit")
	}
}

// Root runs the read–eval–print loop. It reads a line, parses the first
// token as the command, and dispatches to App methods. Unknown commands are
// reported back to the user. The loop exits on EOF or "exit"/"quit".
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to passvault (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("pv %s> ", a.getStatus())
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			a.printHelp()

		case "signup":
			a.signup(ctx)
		case "login":
			a.login(ctx)
		case "logout":
			a.logout(ctx)
		case "forgot":
			a.forgotPassword(ctx)
		case "recover":
			if len(args) == 0 {
				printlnFn("Usage: recover <url>")
				continue
			}
			a.recoverFromLink(ctx, args[0])
		case "reset":
			a.resetPassword(ctx)
		case "resend":
			a.resendVerification(ctx)

		case "l", "list":
			a.list(strings.Join(args, " "))
		case "show":
			if len(args) == 0 {
				printlnFn("Usage: show <id>")
				continue
			}
			a.show(args[0])
		case "add":
			a.add(ctx)
		case "update":
			if len(args) == 0 {
				printlnFn("Usage: update <id>")
				continue
			}
			a.update(ctx, args[0])
		case "delete":
			if len(args) == 0 {
				printlnFn("Usage: delete <id>")
				continue
			}
			a.delete(ctx, args[0])
		case "refresh":
			a.refresh(ctx)
		case "backup":
			a.snapshot(ctx)

		case "back":
			if !a.nav.Back() {
				printlnFn("No earlier history entry.")
			}
		case "forward":
			if !a.nav.Forward() {
				printlnFn("No later history entry.")
			}

		case "status":
			a.status()

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func (a *App) status() {
	printlnFn("Phase:   ", string(a.controller.Phase()))
	if sess := a.controller.Session(); sess != nil {
		printlnFn("User:    ", sess.Email)
		printlnFn("Verified:", sess.Verified())
	}
	printlnFn("Location:", a.nav.Current().String())
	if a.isAuthenticated() {
		printlnFn("Entries: ", len(a.store.Items()))
		if e := a.store.Err(); e != "" {
			printlnFn("Error:   ", e)
		}
	}
}
