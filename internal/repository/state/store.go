package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oshokin/homee/internal/domain/home"
	"github.com/oshokin/homee/internal/logger"
)

// Store holds the current control state and writes it through to a Repository.
// Each field has a single owning loop; Store only serialises their saves.
type Store struct {
	repo Repository

	mu      sync.Mutex
	current home.ControlState
}

// Open loads the persisted state. A missing or unreadable file yields the defaults.
func Open(ctx context.Context, repo Repository) *Store {
	current := home.DefaultControlState()

	loaded, err := repo.Load(ctx)

	switch {
	case err == nil:
		current = *loaded
		logger.InfoKV(ctx, "Control state restored",
			"light_enabled", current.LightEnabled, "last_badge_uid", current.LastBadgeUID)
	case errors.Is(err, ErrNotFound):
		logger.Info(ctx, "No saved control state, using defaults")
	default:
		logger.WarnKV(ctx, "Unable to read control state, using defaults", "error", err)
	}

	return &Store{
		repo:    repo,
		current: current,
	}
}

// Get returns the current state.
func (s *Store) Get() home.ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Update applies fn and saves the result. A failed save is logged and returned;
// the in-memory state keeps the update.
func (s *Store) Update(ctx context.Context, fn func(*home.ControlState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	s.current.UpdatedAt = time.Now()

	snapshot := s.current
	if err := s.repo.Save(ctx, &snapshot); err != nil {
		logger.ErrorKV(ctx, "Unable to save control state", "error", err)

		return err
	}

	return nil
}
