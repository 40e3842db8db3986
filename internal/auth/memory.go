package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memUser struct {
	User
	hash string
}

// MemoryProvider keeps accounts in process memory. Accounts vanish on
// restart; it serves local development and tests.
type MemoryProvider struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	byEmail  map[string]*memUser
	byID     map[string]*memUser
	sessions map[string]Session
}

// NewMemoryProvider creates an empty provider whose sessions last ttl.
func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	return &MemoryProvider{
		ttl:      ttl,
		now:      time.Now,
		byEmail:  make(map[string]*memUser),
		byID:     make(map[string]*memUser),
		sessions: make(map[string]Session),
	}
}

func (m *MemoryProvider) SignUp(_ context.Context, p SignUpParams) (User, error) {
	p, err := normalize(p)
	if err != nil {
		return User{}, err
	}
	hash, err := hashPassword(p.Password)
	if err != nil {
		return User{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[p.Email]; taken {
		return User{}, ErrEmailTaken
	}
	u := &memUser{
		User: User{
			ID:        uuid.NewString(),
			Email:     p.Email,
			Name:      p.Name,
			Level:     p.Level,
			Gender:    p.Gender,
			Role:      p.Role,
			CreatedAt: m.now(),
		},
		hash: hash,
	}
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return u.User, nil
}

func (m *MemoryProvider) SignIn(_ context.Context, email, password string) (Session, error) {
	m.mu.RLock()
	u, ok := m.byEmail[normalizeEmail(email)]
	m.mu.RUnlock()
	if !ok || !checkPassword(u.hash, password) {
		return Session{}, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	s := Session{Token: token, UserID: u.ID, ExpiresAt: m.now().Add(m.ttl)}

	m.mu.Lock()
	m.sessions[tokenHash(token)] = s
	m.mu.Unlock()
	return s, nil
}

func (m *MemoryProvider) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, tokenHash(token))
	m.mu.Unlock()
	return nil
}

func (m *MemoryProvider) CurrentUser(_ context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNoSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := tokenHash(token)
	s, ok := m.sessions[key]
	if !ok {
		return User{}, ErrNoSession
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, key)
		return User{}, ErrNoSession
	}
	u, ok := m.byID[s.UserID]
	if !ok {
		return User{}, ErrNoSession
	}
	return u.User, nil
}
