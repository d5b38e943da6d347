// Package vault owns the in-memory collection of credential entries and
// keeps it synchronized with the records store. Secrets are encrypted on
// every write and decrypted on every read; plaintext lives only in the
// ephemeral PlainText field of returned entries.
package vault

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/mbarsukov/passvault/internal/cryptox"
	"github.com/mbarsukov/passvault/internal/logging"
	"github.com/mbarsukov/passvault/internal/records"
)

// Entry is one credential record as the rest of the client sees it.
// CipherText is the persisted secret form; PlainText is derived and never
// persisted.
type Entry struct {
	ID         string
	OwnerID    string
	SiteName   string
	URL        string
	Username   string
	CipherText string
	PlainText  string
}

// AddInput is the caller-supplied data for a new entry. All fields are
// required.
type AddInput struct {
	OwnerID  string
	SiteName string
	URL      string
	Username string
	Password string
}

var ErrMissingFields = errors.New("sitename, url, username and password are required")

// Store holds the vault collection. Every mutation of items is either a
// whole replacement or a single-element splice; readers get copies.
type Store struct {
	repo   records.Repository
	crypto *cryptox.Engine
	logger logging.Logger

	mu      sync.Mutex
	items   []Entry
	loading bool
	err     string
}

func NewStore(repo records.Repository, crypto *cryptox.Engine, logger logging.Logger) *Store {
	return &Store{repo: repo, crypto: crypto, logger: logger}
}

// Items returns a copy of the current collection.
func (s *Store) Items() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.items))
	copy(out, s.items)
	return out
}

// Loading reports whether a fetch or write is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the last recorded error message, or "" if none.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Search returns the entries whose sitename, url or username contains term
// (case-insensitive). An empty term returns everything.
func (s *Store) Search(term string) []Entry {
	items := s.Items()
	if term == "" {
		return items
	}

	needle := strings.ToLower(term)
	out := make([]Entry, 0, len(items))
	for _, e := range items {
		if strings.Contains(strings.ToLower(e.SiteName), needle) ||
			strings.Contains(strings.ToLower(e.URL), needle) ||
			strings.Contains(strings.ToLower(e.Username), needle) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.loading = false
	s.err = err.Error()
	s.mu.Unlock()
}

// FetchAll replaces the collection with the decrypted records for ownerID.
// The swap is atomic: no observer ever sees a mix of old and new entries.
// On failure the previous collection is kept as a stale read.
func (s *Store) FetchAll(ctx context.Context, ownerID string) error {
	s.begin()

	recs, err := s.repo.SelectByOwner(ctx, ownerID)
	if err != nil {
		s.fail(err)
		return err
	}

	fresh := make([]Entry, 0, len(recs))
	for _, r := range recs {
		fresh = append(fresh, s.fromRecord(r))
	}

	s.mu.Lock()
	s.items = fresh
	s.loading = false
	s.mu.Unlock()
	return nil
}

// Add encrypts the password, persists a new record, and appends the stored
// entry (with its assigned id) to the collection.
func (s *Store) Add(ctx context.Context, in AddInput) (*Entry, error) {
	if in.SiteName == "" || in.URL == "" || in.Username == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	cipherText, err := s.crypto.Encrypt(in.Password)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.begin()

	stored, err := s.repo.Insert(ctx, &records.Record{
		SiteName: in.SiteName,
		URL:      in.URL,
		Username: in.Username,
		Password: cipherText,
		UserID:   in.OwnerID,
	})
	if err != nil {
		s.fail(err)
		return nil, err
	}

	entry := s.fromRecord(stored)
	entry.PlainText = in.Password

	s.mu.Lock()
	s.items = append(s.items, entry)
	s.loading = false
	s.mu.Unlock()
	return &entry, nil
}

// Update re-encrypts the password, persists by id, and replaces the matching
// entry in place. An id with no local match leaves the collection unchanged.
// Two concurrent updates against the same id both proceed; the later response
// wins.
func (s *Store) Update(ctx context.Context, e Entry) (*Entry, error) {
	cipherText, err := s.crypto.Encrypt(e.PlainText)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.begin()

	stored, err := s.repo.UpdateByID(ctx, e.ID, &records.Record{
		SiteName: e.SiteName,
		URL:      e.URL,
		Username: e.Username,
		Password: cipherText,
		UserID:   e.OwnerID,
	})
	if err != nil {
		s.fail(err)
		return nil, err
	}

	updated := s.fromRecord(stored)
	updated.PlainText = e.PlainText

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == updated.ID {
			s.items[i] = updated
			break
		}
	}
	s.loading = false
	s.mu.Unlock()
	return &updated, nil
}

// Delete removes the record by id remotely, then splices the matching entry
// out of the collection. A backend rejection records the error and leaves
// the collection untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		s.mu.Lock()
		s.err = err.Error()
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) fromRecord(r *records.Record) Entry {
	return Entry{
		ID:         r.ID,
		OwnerID:    r.UserID,
		SiteName:   r.SiteName,
		URL:        r.URL,
		Username:   r.Username,
		CipherText: r.Password,
		PlainText:  s.crypto.Decrypt(r.Password),
	}
}
