package auth

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory Store used to exercise policy logic without a
// database. Mutations hold a mutex so the gate's async activity updates
// stay race-free under the race detector.
type memStore struct {
	mu     sync.Mutex
	users  map[string]User
	resets map[string]memReset
}

type memReset struct {
	userID    string
	expiresAt time.Time
	used      bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]User),
		resets: make(map[string]memReset),
	}
}

func (m *memStore) CreateUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailInUse
		}
	}
	m.users[u.ID] = u

	return nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}

	return User{}, ErrNoAccount
}

func (m *memStore) GetByID(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNoAccount
	}

	return u, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id string, name, email *string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNoAccount
	}
	if email != nil {
		for otherID, other := range m.users {
			if otherID != id && other.Email == *email {
				return User{}, ErrEmailInUse
			}
		}
		u.Email = *email
	}
	if name != nil {
		u.Name = *name
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u

	return u, nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNoAccount
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u

	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return ErrNoAccount
	}
	delete(m.users, id)

	return nil
}

func (m *memStore) RegisterFailedLogin(_ context.Context, id string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNoAccount
	}

	u.FailedLoginAttempts++
	failedAt := now.UTC()
	u.LastFailedLogin = &failedAt
	if u.FailedLoginAttempts >= maxAttempts {
		lockUntil := now.UTC().Add(lockDuration)
		u.AccountLockedUntil = &lockUntil
	}
	m.users[id] = u

	if u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now) {
		value := *u.AccountLockedUntil
		return &value, nil
	}

	return nil, nil
}

func (m *memStore) ResetLockout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil
	}
	u.FailedLoginAttempts = 0
	u.LastFailedLogin = nil
	u.AccountLockedUntil = nil
	m.users[id] = u

	return nil
}

func (m *memStore) TouchLastActive(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNoAccount
	}
	stamp := at.UTC()
	u.LastActiveAt = &stamp
	m.users[id] = u

	return nil
}

func (m *memStore) CreatePasswordReset(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resets[tokenHash] = memReset{userID: userID, expiresAt: expiresAt}

	return nil
}

func (m *memStore) ConsumePasswordReset(_ context.Context, tokenHash string, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reset, ok := m.resets[tokenHash]
	if !ok || reset.used || !reset.expiresAt.After(now) {
		return "", ErrResetTokenSpent
	}
	reset.used = true
	m.resets[tokenHash] = reset

	return reset.userID, nil
}

// mutate applies fn to a stored user under the lock; tests use it to age
// lockouts without waiting.
func (m *memStore) mutate(id string, fn func(*User)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return
	}
	fn(&u)
	m.users[id] = u
}

// snapshot returns a copy of the stored user.
func (m *memStore) snapshot(id string) (User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	return u, ok
}

var _ Store = (*memStore)(nil)
