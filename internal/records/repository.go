// Package records is the persistence collaborator: the remote store of
// encrypted credential rows. The password column always holds ciphertext;
// plaintext never crosses this boundary.
package records

import "context"

// Record mirrors the passwords table. ID is assigned by the store on Insert
// and immutable afterwards.
type Record struct {
	ID       string
	SiteName string
	URL      string
	Username string
	Password string // ciphertext
	UserID   string
}

// Repository is the operation surface the vault store consumes. All queries
// are scoped by owner except the by-id mutations.
type Repository interface {
	SelectByOwner(ctx context.Context, ownerID string) ([]*Record, error)
	Insert(ctx context.Context, rec *Record) (*Record, error)
	UpdateByID(ctx context.Context, id string, rec *Record) (*Record, error)
	DeleteByID(ctx context.Context, id string) error
}
