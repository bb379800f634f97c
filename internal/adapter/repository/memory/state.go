// Package memory provides an in-memory state repository for tests and
// headless runs where nothing should touch the filesystem.
package memory

import (
	"sync"

	"github.com/echoforge/echoforge/internal/domain"
	"github.com/echoforge/echoforge/internal/ports"
)

// StateRepository implements ports.StateRepository in process memory.
//
// Thread-safe: all operations protected by sync.RWMutex.
type StateRepository struct {
	mu       sync.RWMutex
	snapshot domain.PlayerSnapshot
	saved    bool

	saveCount int
	failSave  bool
}

// NewStateRepository creates an empty in-memory state repository.
func NewStateRepository() *StateRepository {
	return &StateRepository{}
}

// SetFailSave configures the repository to fail saves (for testing).
func (r *StateRepository) SetFailSave(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failSave = fail
}

// Save stores the snapshot, replacing any previous one.
func (r *StateRepository) Save(snapshot domain.PlayerSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failSave {
		return domain.NewStoreError("save", "", "mock save failure", nil)
	}

	r.snapshot = snapshot
	r.saved = true
	r.saveCount++
	return nil
}

// Load returns the stored snapshot, or defaults when nothing was saved.
func (r *StateRepository) Load() (domain.PlayerSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.saved {
		return domain.PlayerSnapshot{
			Volume: domain.DefaultVolume,
			Repeat: domain.RepeatOff,
		}, nil
	}
	return r.snapshot, nil
}

// Clear removes the stored snapshot.
func (r *StateRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snapshot = domain.PlayerSnapshot{}
	r.saved = false
	return nil
}

// SaveCount returns how many saves succeeded (for testing).
func (r *StateRepository) SaveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saveCount
}

// Verify interface implementation
var _ ports.StateRepository = (*StateRepository)(nil)
