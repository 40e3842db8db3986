package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func validParams() SignUpParams {
	return SignUpParams{
		Email:    "  Ada@Example.com ",
		Password: "correct horse",
		Name:     "Ada Obi",
		Level:    "300",
		Gender:   "Female",
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*SignUpParams)
		wantField string
	}{
		{"valid", func(*SignUpParams) {}, ""},
		{"missing name", func(p *SignUpParams) { p.Name = " " }, "name"},
		{"missing level", func(p *SignUpParams) { p.Level = "" }, "level"},
		{"bad gender", func(p *SignUpParams) { p.Gender = "Other" }, "gender"},
		{"bad email", func(p *SignUpParams) { p.Email = "ada@" }, "email"},
		{"short password", func(p *SignUpParams) { p.Password = "short" }, "password"},
		{"unknown role", func(p *SignUpParams) { p.Role = "warden" }, "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)

			got, err := normalize(p)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "ada@example.com", got.Email)
				assert.Equal(t, RoleStudent, got.Role)
				return
			}
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.wantField, fe.Field)
		})
	}
}

func TestMenu(t *testing.T) {
	admin := Menu(User{Role: RoleAdmin})
	require.Len(t, admin, 4)
	assert.Equal(t, "View Students", admin[0].Label)
	assert.Equal(t, "Allocate Rooms", admin[3].Label)

	student := Menu(User{Role: RoleStudent})
	require.Len(t, student, 2)
	assert.Equal(t, "Submit Complaint", student[0].Label)
	assert.Equal(t, "View My Complaints", student[1].Label)
}

func TestMemoryProvider_Flow(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider(time.Hour)

	u, err := m.SignUp(ctx, validParams())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEmpty(t, u.ID)

	dup := validParams()
	dup.Email = "ADA@example.com"
	_, err = m.SignUp(ctx, dup)
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = m.SignIn(ctx, "ada@example.com", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = m.SignIn(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	s, err := m.SignIn(ctx, "Ada@Example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.UserID)

	cur, err := m.CurrentUser(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, u, cur)

	require.NoError(t, m.SignOut(ctx, s.Token))
	_, err = m.CurrentUser(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryProvider_SessionExpires(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryProvider(time.Minute)
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_, err := m.SignUp(ctx, validParams())
	require.NoError(t, err)
	s, err := m.SignIn(ctx, "ada@example.com", "correct horse")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = m.CurrentUser(ctx, s.Token)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryProvider_EmptyToken(t *testing.T) {
	_, err := NewMemoryProvider(time.Hour).CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
}

type execCall struct {
	sql  string
	args []any
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(r.vals))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeDB struct {
	mu      sync.Mutex
	execs   []execCall
	execErr error
	row     fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("DELETE 3"), f.execErr
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func TestPGProvider_SignUp(t *testing.T) {
	db := &fakeDB{}
	p := NewPGProvider(db, time.Hour)

	u, err := p.SignUp(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, u.Role)

	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	require.Len(t, args, 8)
	assert.Equal(t, u.ID, args[0])
	assert.Equal(t, "ada@example.com", args[1])
	assert.Equal(t, "student", args[5])
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(args[6].(string)), []byte("correct horse")))
}

func TestPGProvider_SignUpDuplicate(t *testing.T) {
	db := &fakeDB{execErr: &pgconn.PgError{Code: "23505"}}
	_, err := NewPGProvider(db, time.Hour).SignUp(context.Background(), validParams())
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestPGProvider_SignUpInvalid(t *testing.T) {
	db := &fakeDB{}
	params := validParams()
	params.Gender = ""
	_, err := NewPGProvider(db, time.Hour).SignUp(context.Background(), params)

	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Empty(t, db.execs)
}

func TestPGProvider_SignIn(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	db := &fakeDB{row: fakeRow{vals: []any{"user-1", string(hash)}}}
	p := NewPGProvider(db, time.Hour)
	now := time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	s, err := p.SignIn(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)

	require.Len(t, db.execs, 1)
	assert.Equal(t, []any{tokenHash(s.Token), "user-1", s.ExpiresAt}, db.execs[0].args)

	_, err = p.SignIn(context.Background(), "ada@example.com", "nope nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPGProvider_SignInUnknownEmail(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err := NewPGProvider(db, time.Hour).SignIn(context.Background(), "x@example.com", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPGProvider_CurrentUser(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		token   string
		row     fakeRow
		want    User
		wantErr error
	}{
		{
			name:  "admin session",
			token: "tok",
			row:   fakeRow{vals: []any{"user-1", "warden@example.com", "Warden", "", "Male", "admin", created}},
			want: User{
				ID: "user-1", Email: "warden@example.com", Name: "Warden",
				Gender: "Male", Role: RoleAdmin, CreatedAt: created,
			},
		},
		{name: "expired or unknown", token: "tok", row: fakeRow{err: pgx.ErrNoRows}, wantErr: ErrNoSession},
		{name: "no cookie", token: "", wantErr: ErrNoSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{row: tt.row}
			got, err := NewPGProvider(db, time.Hour).CurrentUser(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPGProvider_CurrentUserDBError(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: errors.New("connection reset")}}
	_, err := NewPGProvider(db, time.Hour).CurrentUser(context.Background(), "tok")
	assert.ErrorContains(t, err, "lookup portal session")
	assert.NotErrorIs(t, err, ErrNoSession)
}

func TestPGProvider_SignOutAndPurge(t *testing.T) {
	db := &fakeDB{}
	p := NewPGProvider(db, time.Hour)

	require.NoError(t, p.SignOut(context.Background(), "tok"))
	n, err := p.PurgeSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.Len(t, db.execs, 2)
	assert.Equal(t, []any{tokenHash("tok")}, db.execs[0].args)
}

func TestPGProvider_StartSessionCleanup(t *testing.T) {
	t.Run("purges on start and stops on cancel", func(t *testing.T) {
		db := &fakeDB{}
		p := NewPGProvider(db, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- p.StartSessionCleanup(ctx, time.Hour) }()

		require.Eventually(t, func() bool {
			db.mu.Lock()
			defer db.mu.Unlock()
			return len(db.execs) == 1
		}, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("cleanup did not stop after cancel")
		}
		assert.Equal(t, purgeSessionsSQL, db.execs[0].sql)
	})

	t.Run("purge errors keep the loop alive", func(t *testing.T) {
		db := &fakeDB{execErr: errors.New("connection reset")}
		p := NewPGProvider(db, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- p.StartSessionCleanup(ctx, 10*time.Millisecond) }()

		require.Eventually(t, func() bool {
			db.mu.Lock()
			defer db.mu.Unlock()
			return len(db.execs) >= 2
		}, time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestPGProvider_Migrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPGProvider(db, time.Hour).Migrate(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "CREATE TABLE IF NOT EXISTS portal_users")
}
