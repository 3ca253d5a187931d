// stores.go
//
// Shared in-memory implementations of the store-facing interfaces.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/MGallo-Code/obol/internal/store"
	"github.com/gofrs/uuid/v5"
)

// MockUserStore implements directory.UserStore for tests.
// Always stateful...Users is a map keyed by UID, like a real table.
// Use *Err fields to inject errors for specific operations.
type MockUserStore struct {
	// Error injection...zero value means no error
	GetUserErr    error
	CreateUserErr error
	UpdateUserErr error

	Users map[string]*store.User // keyed by UID

	// Call counters, for asserting which path CreateOrUpdate took.
	Creates int
	Updates int

	mu sync.Mutex
}

// NewMockUserStore returns a MockUserStore seeded with users, indexed by UID.
func NewMockUserStore(users ...*store.User) *MockUserStore {
	ms := &MockUserStore{Users: make(map[string]*store.User)}
	for _, u := range users {
		ms.Users[u.UID] = u
	}
	return ms
}

func (m *MockUserStore) GetUserByUID(_ context.Context, uid string) (*store.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[uid]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserStore) CreateUser(_ context.Context, id uuid.UUID, uid string, displayName, avatarURL *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Creates++
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	if m.Users == nil {
		m.Users = make(map[string]*store.User)
	}
	if _, ok := m.Users[uid]; ok {
		return store.ErrUserExists
	}
	now := time.Now()
	m.Users[uid] = &store.User{
		ID:           id,
		UID:          uid,
		DisplayName:  displayName,
		AvatarURL:    avatarURL,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSignInAt: &now,
	}
	return nil
}

func (m *MockUserStore) UpdateUserProfile(_ context.Context, uid string, displayName, avatarURL *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates++
	if m.UpdateUserErr != nil {
		return m.UpdateUserErr
	}
	u, ok := m.Users[uid]
	if !ok {
		return store.ErrUserNotFound
	}
	now := time.Now()
	u.DisplayName = displayName
	u.AvatarURL = avatarURL
	u.UpdatedAt = now
	u.LastSignInAt = &now
	return nil
}

// MockStateLedger implements auth.StateLedger in memory.
// Set HealthErr to store.ErrLedgerDisabled to mimic store.NoopStateLedger.
type MockStateLedger struct {
	ConsumeErr error
	HealthErr  error

	Consumed map[string]time.Duration

	mu sync.Mutex
}

// NewMockStateLedger returns an empty MockStateLedger.
func NewMockStateLedger() *MockStateLedger {
	return &MockStateLedger{Consumed: make(map[string]time.Duration)}
}

func (m *MockStateLedger) Consume(_ context.Context, state string, ttl time.Duration) error {
	if m.ConsumeErr != nil {
		return m.ConsumeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Consumed == nil {
		m.Consumed = make(map[string]time.Duration)
	}
	if _, ok := m.Consumed[state]; ok {
		return store.ErrStateConsumed
	}
	m.Consumed[state] = ttl
	return nil
}

func (m *MockStateLedger) CheckHealth(context.Context) error {
	return m.HealthErr
}
