package auth

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the provider uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGProvider stores accounts and sessions in PostgreSQL.
type PGProvider struct {
	db  DB
	ttl time.Duration
	now func() time.Time
}

// NewPGProvider creates a provider on db whose sessions last ttl.
func NewPGProvider(db DB, ttl time.Duration) *PGProvider {
	return &PGProvider{db: db, ttl: ttl, now: time.Now}
}

// Migrate creates the portal tables if they do not exist.
func (p *PGProvider) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate portal: %w", err)
	}
	return nil
}

const insertUserSQL = `
INSERT INTO portal_users (id, email, name, level, gender, role, password_hash, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

func (p *PGProvider) SignUp(ctx context.Context, params SignUpParams) (User, error) {
	params, err := normalize(params)
	if err != nil {
		return User{}, err
	}
	hash, err := hashPassword(params.Password)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:        uuid.NewString(),
		Email:     params.Email,
		Name:      params.Name,
		Level:     params.Level,
		Gender:    params.Gender,
		Role:      params.Role,
		CreatedAt: p.now().UTC(),
	}
	_, err = p.db.Exec(ctx, insertUserSQL,
		u.ID, u.Email, u.Name, u.Level, u.Gender, string(u.Role), hash, u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("insert portal user: %w", err)
	}
	return u, nil
}

const credentialsSQL = `SELECT id::text, password_hash FROM portal_users WHERE email = $1`

const insertSessionSQL = `
INSERT INTO portal_sessions (token_hash, user_id, expires_at)
VALUES ($1, $2, $3)`

func (p *PGProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	var id, hash string
	err := p.db.QueryRow(ctx, credentialsSQL, normalizeEmail(email)).Scan(&id, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup portal user: %w", err)
	}
	if !checkPassword(hash, password) {
		return Session{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	s := Session{Token: token, UserID: id, ExpiresAt: p.now().Add(p.ttl).UTC()}
	if _, err := p.db.Exec(ctx, insertSessionSQL, tokenHash(token), id, s.ExpiresAt); err != nil {
		return Session{}, fmt.Errorf("insert portal session: %w", err)
	}
	return s, nil
}

const deleteSessionSQL = `DELETE FROM portal_sessions WHERE token_hash = $1`

func (p *PGProvider) SignOut(ctx context.Context, token string) error {
	if _, err := p.db.Exec(ctx, deleteSessionSQL, tokenHash(token)); err != nil {
		return fmt.Errorf("delete portal session: %w", err)
	}
	return nil
}

const currentUserSQL = `
SELECT u.id::text, u.email, u.name, u.level, u.gender, u.role, u.created_at
FROM portal_sessions s
JOIN portal_users u ON u.id = s.user_id
WHERE s.token_hash = $1 AND s.expires_at > $2`

func (p *PGProvider) CurrentUser(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNoSession
	}

	var (
		u    User
		role string
	)
	err := p.db.QueryRow(ctx, currentUserSQL, tokenHash(token), p.now().UTC()).
		Scan(&u.ID, &u.Email, &u.Name, &u.Level, &u.Gender, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNoSession
	}
	if err != nil {
		return User{}, fmt.Errorf("lookup portal session: %w", err)
	}
	u.Role = Role(role)
	return u, nil
}

const purgeSessionsSQL = `DELETE FROM portal_sessions WHERE expires_at <= $1`

// PurgeSessions deletes expired sessions and returns how many were removed.
func (p *PGProvider) PurgeSessions(ctx context.Context) (int64, error) {
	tag, err := p.db.Exec(ctx, purgeSessionsSQL, p.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge portal sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
