package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mbarsukov/passvault/internal/common"
	"github.com/mbarsukov/passvault/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SelectByOwner(ctx context.Context, ownerID string) ([]*Record, error) {
	query :=
		`SELECT id, sitename, url, username, password, user_id FROM passwords
		 WHERE user_id = $1
		 ORDER BY created_at, id
		 `

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*Record, 0)
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.SiteName, &rec.URL, &rec.Username, &rec.Password, &rec.UserID); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *Record) (*Record, error) {
	query :=
		`INSERT INTO passwords (id, sitename, url, username, password, user_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id
		 `

	inserted := *rec
	err := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), rec.SiteName, rec.URL, rec.Username, rec.Password, rec.UserID).Scan(&inserted.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &inserted, nil
}

func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, rec *Record) (*Record, error) {
	query :=
		`UPDATE passwords
		 SET sitename = $2, url = $3, username = $4, password = $5
		 WHERE id = $1
		 RETURNING id, sitename, url, username, password, user_id
		 `

	updated := &Record{}
	err := r.db.QueryRowContext(ctx, query,
		id, rec.SiteName, rec.URL, rec.Username, rec.Password).
		Scan(&updated.ID, &updated.SiteName, &updated.URL, &updated.Username, &updated.Password, &updated.UserID)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return updated, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id string) error {
	query := `DELETE FROM passwords WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
