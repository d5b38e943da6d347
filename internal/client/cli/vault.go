package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/mbarsukov/passvault/internal/vault"
)

func (a *App) requireVault() bool {
	if !a.isAuthenticated() {
		printlnFn("Login and verify your email first.")
		return false
	}
	return true
}

func (a *App) list(term string) {
	if !a.requireVault() {
		return
	}

	entries := a.store.Search(term)
	if len(entries) == 0 {
		if term != "" {
			printlnFn("No passwords found.")
		} else {
			printlnFn("No passwords saved yet. Type 'add' to create one.")
		}
		return
	}

	for _, e := range entries {
		printlnFn(fmt.Sprintf("%s  %-20s %-30s %s", e.ID, e.SiteName, e.URL, e.Username))
	}
	if err := a.store.Err(); err != "" {
		printlnFn("Error:", err)
	}
}

func (a *App) findEntry(id string) (vault.Entry, bool) {
	for _, e := range a.store.Items() {
		if e.ID == id {
			return e, true
		}
	}
	return vault.Entry{}, false
}

func (a *App) show(id string) {
	if !a.requireVault() {
		return
	}

	e, ok := a.findEntry(id)
	if !ok {
		printlnFn("No entry with id", id)
		return
	}

	printlnFn("Site:    ", e.SiteName)
	printlnFn("URL:     ", e.URL)
	printlnFn("Username:", e.Username)
	printlnFn("Password:", e.PlainText)
}

func (a *App) add(ctx context.Context) {
	if !a.requireVault() {
		return
	}
	sess := a.controller.Session()

	siteName, err := GetSimpleText(a.reader, "Site name", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	url, err := GetSimpleText(a.reader, "URL", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	username, err := GetSimpleText(a.reader, "Username", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	password, err := GetPassword("Password", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}

	entry, err := a.store.Add(ctx, vault.AddInput{
		OwnerID:  sess.UserID,
		SiteName: siteName,
		URL:      url,
		Username: username,
		Password: password,
	})
	if err != nil {
		printlnFn("Error adding entry:", err)
		return
	}
	printlnFn("Added entry", entry.ID)
}

func (a *App) update(ctx context.Context, id string) {
	if !a.requireVault() {
		return
	}

	e, ok := a.findEntry(id)
	if !ok {
		printlnFn("No entry with id", id)
		return
	}

	var err error
	if e.SiteName, err = GetTextWithDefault(a.reader, "Site name", e.SiteName, os.Stdout); err != nil {
		printlnFn("Input error:", err)
		return
	}
	if e.URL, err = GetTextWithDefault(a.reader, "URL", e.URL, os.Stdout); err != nil {
		printlnFn("Input error:", err)
		return
	}
	if e.Username, err = GetTextWithDefault(a.reader, "Username", e.Username, os.Stdout); err != nil {
		printlnFn("Input error:", err)
		return
	}
	password, err := GetPassword("Password (empty to keep)", os.Stdout)
	if err != nil {
		printlnFn("Input error:", err)
		return
	}
	if password != "" {
		e.PlainText = password
	}

	if _, err := a.store.Update(ctx, e); err != nil {
		printlnFn("Error updating entry:", err)
		return
	}
	printlnFn("Updated entry", e.ID)
}

func (a *App) delete(ctx context.Context, id string) {
	if !a.requireVault() {
		return
	}

	if err := a.store.Delete(ctx, id); err != nil {
		printlnFn("Error deleting entry:", err)
		return
	}
	printlnFn("Deleted entry", id)
}

func (a *App) refresh(ctx context.Context) {
	if !a.requireVault() {
		return
	}
	sess := a.controller.Session()

	if err := a.store.FetchAll(ctx, sess.UserID); err != nil {
		printlnFn("Error loading vault:", err)
		return
	}
	printlnFn(fmt.Sprintf("Loaded %d entries.", len(a.store.Items())))
}

func (a *App) snapshot(ctx context.Context) {
	if !a.requireVault() {
		return
	}
	if !a.backupEnabled() {
		printlnFn("Snapshots are not configured (set the S3 bucket).")
		return
	}
	sess := a.controller.Session()

	key, err := a.backup.Snapshot(ctx, sess.UserID, a.store.Items())
	if err != nil {
		printlnFn("Snapshot failed:", err)
		return
	}
	printlnFn("Snapshot uploaded:", key)
}

func (a *App) backupEnabled() bool {
	return a.config.S3Bucket != ""
}
