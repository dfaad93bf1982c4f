package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// blobKey is the single global key holding the fallback state.
const blobKey = "publishing_state"

// stateBlob is a serialized models.PublishingState.
type stateBlob struct {
	Key     string `badgerhold:"key"`
	UserID  string
	Data    []byte
	SavedAt time.Time
}

// StateStore keeps publishing state as one global blob. It is single-tenant:
// a blob written for one user is invisible to another, and saving for a
// different user replaces it.
type StateStore struct {
	store  *Store
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewStateStore creates a fallback StateStore.
func NewStateStore(store *Store, logger arbor.ILogger) *StateStore {
	return &StateStore{store: store, logger: logger}
}

func (s *StateStore) readBlob() (*models.PublishingState, error) {
	var blob stateBlob
	if err := s.store.db.Get(blobKey, &blob); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read fallback state: %w", err)
	}

	var state models.PublishingState
	if err := json.Unmarshal(blob.Data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode fallback state: %w", err)
	}
	return &state, nil
}

func (s *StateStore) writeBlob(state *models.PublishingState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode fallback state: %w", err)
	}
	blob := stateBlob{Key: blobKey, UserID: state.UserID, Data: data, SavedAt: time.Now().UTC()}
	if err := s.store.db.Upsert(blobKey, &blob); err != nil {
		return fmt.Errorf("failed to write fallback state: %w", err)
	}
	return nil
}

func (s *StateStore) LoadProfiles(_ context.Context, userID string, profileIDs []string) (map[string]*models.ProfileState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]*models.ProfileState, len(profileIDs))
	state, err := s.readBlob()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return out, nil
	}
	if state.UserID != userID {
		s.logger.Warn().Str("user_id", userID).Str("blob_user", state.UserID).Msg("Fallback state belongs to another user, ignoring")
		return out, nil
	}

	for _, id := range profileIDs {
		if st, ok := state.Profiles[id]; ok && st != nil {
			st.Normalize()
			out[id] = st
		}
	}
	return out, nil
}

func (s *StateStore) SaveProfile(_ context.Context, userID, profileID string, st *models.ProfileState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readBlob()
	if err != nil || state == nil || state.UserID != userID {
		// Unreadable or foreign blobs are replaced.
		state = &models.PublishingState{UserID: userID}
	}
	if state.Profiles == nil {
		state.Profiles = make(map[string]*models.ProfileState)
	}
	state.Profiles[profileID] = st

	return s.writeBlob(state)
}

func (s *StateStore) DeleteProfile(_ context.Context, userID, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readBlob()
	if err != nil {
		return err
	}
	if state == nil || state.UserID != userID {
		return nil
	}
	delete(state.Profiles, profileID)
	return s.writeBlob(state)
}

// Compile-time check
var _ interfaces.StateStore = (*StateStore)(nil)
