// Package ledger keeps an audit trail of form submissions in PostgreSQL.
//
// The ledger is observability only: the site's content never lives here, and
// a failing database never changes what a visitor sees.
package ledger

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/divinahealthcare/site/internal/submit"
)

//go:embed schema.sql
var schema string

// DB is the subset of pgxpool.Pool the ledger uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store writes and reads submission records.
type Store struct {
	db DB
}

// New creates a ledger on db.
func New(db DB) *Store {
	return &Store{db: db}
}

// Migrate creates the ledger table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}

const insertSQL = `
INSERT INTO submissions
    (id, form, outcome, label, email, ip_address, user_agent, attachment_url, error, duration_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO NOTHING`

// Record implements submit.Recorder.
func (s *Store) Record(ctx context.Context, rec submit.Record) error {
	_, err := s.db.Exec(ctx, insertSQL,
		rec.ID,
		rec.Form,
		rec.Outcome.String(),
		rec.Label,
		rec.Email,
		rec.IPAddress,
		rec.UserAgent,
		rec.AttachmentURL,
		rec.Error,
		rec.Duration.Milliseconds(),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission %s: %w", rec.ID, err)
	}
	return nil
}

const recentSQL = `
SELECT id, form, outcome, label, email, ip_address, user_agent, attachment_url, error, duration_ms, created_at
FROM submissions
ORDER BY created_at DESC
LIMIT $1`

// Recent returns the newest records first.
func (s *Store) Recent(ctx context.Context, limit int) ([]submit.Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent submissions: %w", err)
	}
	defer rows.Close()

	var out []submit.Record
	for rows.Next() {
		var (
			rec        submit.Record
			outcome    string
			durationMS int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.Form,
			&outcome,
			&rec.Label,
			&rec.Email,
			&rec.IPAddress,
			&rec.UserAgent,
			&rec.AttachmentURL,
			&rec.Error,
			&durationMS,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		rec.Outcome, _ = submit.ParseState(outcome)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

const purgeSQL = `DELETE FROM submissions WHERE created_at < now() - make_interval(days => $1)`

// Purge deletes records older than days and returns how many were removed.
func (s *Store) Purge(ctx context.Context, days int) (int64, error) {
	tag, err := s.db.Exec(ctx, purgeSQL, days)
	if err != nil {
		return 0, fmt.Errorf("purge submissions: %w", err)
	}
	return tag.RowsAffected(), nil
}
