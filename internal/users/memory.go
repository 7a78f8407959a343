package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	mu     sync.RWMutex
	seq    int64
	byID   map[int64]User
	hashes map[int64][]byte
}

// NewInMemoryStore hashes with bcrypt.MinCost; it is meant for tests and demos.
func NewInMemoryStore() Store {
	return &memStore{byID: map[int64]User{}, hashes: map[int64][]byte{}}
}

func (m *memStore) Create(_ context.Context, u User, password string) (User, error) {
	if err := normalize(&u); err != nil {
		return User{}, err
	}
	hash, err := hashPassword(password, bcrypt.MinCost)
	if err != nil {
		return User{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Username == u.Username {
			return User{}, ErrUsernameTaken
		}
	}
	m.seq++
	u.ID = m.seq
	u.CreatedAt = time.Now()
	m.byID[u.ID] = u
	m.hashes[u.ID] = hash
	return u, nil
}

func (m *memStore) Authenticate(_ context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, u := range m.byID {
		if u.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword(m.hashes[id], []byte(password)) != nil {
			break
		}
		return u, nil
	}
	return User{}, ErrInvalidCredentials
}

func (m *memStore) Get(_ context.Context, id int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
