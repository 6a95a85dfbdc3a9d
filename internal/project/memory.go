package project

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses maps with an RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[string]*Project
	users    map[string]*User
}

// NewMemoryRepository creates a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[string]*Project),
		users:    make(map[string]*User),
	}
}

// CreateProject persists a new project.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) CreateProject(_ context.Context, p *Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projects[p.ID] = p.Clone()
	return nil
}

// GetProject retrieves a project by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) GetProject(_ context.Context, id string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	return p.Clone(), nil
}

// UpdateProject applies a partial update to the stored project.
func (r *MemoryRepository) UpdateProject(_ context.Context, id string, u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	return p.Apply(u)
}

// ClaimRun compare-and-sets the run token on a pending project.
func (r *MemoryRepository) ClaimRun(_ context.Context, id, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	return p.ClaimRun(runID)
}

// GetUser retrieves a user by ID.
func (r *MemoryRepository) GetUser(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

// SaveUser persists a user record.
func (r *MemoryRepository) SaveUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.users[u.ID] = &clone
	return nil
}

// UpdateUserCredits sets a user's credit balance.
func (r *MemoryRepository) UpdateUserCredits(_ context.Context, id string, balance int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.CreditBalance = balance
	return nil
}
