package orchestrator

import (
	"sync"

	"github.com/bobmcallan/tickzen/internal/interfaces"
)

// StopRegistry holds user-issued stop requests per (user, profile).
type StopRegistry struct {
	mu    sync.RWMutex
	flags map[string]map[string]bool
}

// NewStopRegistry creates an empty registry.
func NewStopRegistry() *StopRegistry {
	return &StopRegistry{flags: make(map[string]map[string]bool)}
}

// Request asks the running (or next) run of a profile to halt.
func (r *StopRegistry) Request(userID, profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flags[userID] == nil {
		r.flags[userID] = make(map[string]bool)
	}
	r.flags[userID][profileID] = true
}

// Clear removes stop requests for the given profiles, before a new run starts.
func (r *StopRegistry) Clear(userID string, profileIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range profileIDs {
		delete(r.flags[userID], id)
	}
	if len(r.flags[userID]) == 0 {
		delete(r.flags, userID)
	}
}

// Requested reports whether a stop is pending for the profile.
func (r *StopRegistry) Requested(userID, profileID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.flags[userID][profileID]
}

// ForUser returns the stop signal a run for userID polls.
func (r *StopRegistry) ForUser(userID string) interfaces.StopSignal {
	return userStop{registry: r, userID: userID}
}

type userStop struct {
	registry *StopRegistry
	userID   string
}

func (u userStop) StopRequested(profileID string) bool {
	return u.registry.Requested(u.userID, profileID)
}
