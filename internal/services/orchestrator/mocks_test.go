package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

// --- state ---

type memState struct {
	mu       sync.Mutex
	today    string
	profiles map[string]*models.ProfileState
	loadErr  error
	saveErr  error
	loads    int
	saves    int
}

func newMemState(today string) *memState {
	return &memState{today: today, profiles: make(map[string]*models.ProfileState)}
}

func cloneState(st *models.ProfileState) *models.ProfileState {
	data, err := json.Marshal(st)
	if err != nil {
		panic(err)
	}
	var out models.ProfileState
	if err := json.Unmarshal(data, &out); err != nil {
		panic(err)
	}
	out.Normalize()
	return &out
}

func (m *memState) Load(_ context.Context, userID string, profileIDs []string) (*models.PublishingState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	ps := &models.PublishingState{UserID: userID, Profiles: make(map[string]*models.ProfileState)}
	for _, id := range profileIDs {
		st, ok := m.profiles[id]
		if !ok {
			ps.Profiles[id] = models.NewProfileState(m.today)
			continue
		}
		st = cloneState(st)
		st.Rollover(m.today)
		ps.Profiles[id] = st
	}
	return ps, nil
}

func (m *memState) SaveProfile(_ context.Context, _, profileID string, st *models.ProfileState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.profiles[profileID] = cloneState(st)
	return nil
}

func (m *memState) DeleteProfile(_ context.Context, _, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, profileID)
	return nil
}

func (m *memState) get(profileID string) *models.ProfileState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.profiles[profileID]
	if !ok {
		return nil
	}
	return cloneState(st)
}

func (m *memState) put(profileID string, st *models.ProfileState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profileID] = cloneState(st)
}

// --- content ---

type mockContent struct {
	mu       sync.Mutex
	requests []models.ContentRequest
	fn       func(req models.ContentRequest) (*models.Article, error)
}

func (m *mockContent) Generate(_ context.Context, req models.ContentRequest) (*models.Article, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &models.Article{Title: req.Ticker + " outlook", HTML: "<p>" + req.Ticker + " analysis</p>"}, nil
}

func (m *mockContent) tickers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r.Ticker)
	}
	return out
}

// --- images / uploads ---

type mockImages struct {
	err   error
	calls int
}

func (m *mockImages) RenderFeatureImage(_ context.Context, ticker, _ string) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []byte("png:" + ticker), nil
}

type mockUploader struct {
	fn    func(filename string) (*models.MediaHandle, error)
	calls int
}

func (m *mockUploader) UploadMedia(_ context.Context, _ string, _ models.Author, filename string, _ []byte) (*models.MediaHandle, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(filename)
	}
	return &models.MediaHandle{ID: 100 + m.calls, URL: "https://example.com/" + filename}, nil
}

// --- publisher ---

type mockPublisher struct {
	mu       sync.Mutex
	requests []models.PostRequest
	fn       func(req models.PostRequest) (*models.PostResult, error)
}

func (m *mockPublisher) CreatePost(_ context.Context, req models.PostRequest) (*models.PostResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	fn := m.fn
	m.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &models.PostResult{PostID: 1000 + n, PostURL: "https://example.com/?p=" + req.Title}, nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// --- statuses / history / progress ---

type mockStatuses struct {
	mu      sync.Mutex
	records map[string][]models.StatusRecord
	err     error
}

func newMockStatuses() *mockStatuses {
	return &mockStatuses{records: make(map[string][]models.StatusRecord)}
}

func (m *mockStatuses) RecordStatus(_ context.Context, _, profileID, ticker string, rec models.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[profileID+"/"+ticker] = append(m.records[profileID+"/"+ticker], rec)
	return m.err
}

func (m *mockStatuses) ListStatuses(_ context.Context, _, _ string) (map[string]models.StatusRecord, error) {
	return nil, errors.New("not implemented")
}

type mockHistory struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
	err     error
}

func (m *mockHistory) AppendHistory(_ context.Context, entry models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockHistory) ListHistory(_ context.Context, _, _ string, _ int) ([]models.HistoryEntry, error) {
	return nil, errors.New("not implemented")
}

type mockProgress struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (m *mockProgress) Emit(ev models.ProgressEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

func (m *mockProgress) terminal() []models.ProgressEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ProgressEvent
	for _, ev := range m.events {
		if ev.Phase == models.PhaseTicker && ev.Stage == models.StageDone {
			out = append(out, ev)
		}
	}
	return out
}

// --- lease ---

type mockLease struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
}

func newMockLease() *mockLease {
	return &mockLease{held: make(map[string]string)}
}

func (m *mockLease) Acquire(_ context.Context, userID, profileID, owner string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	key := userID + "/" + profileID
	if cur, ok := m.held[key]; ok && cur != owner {
		return false, nil
	}
	m.held[key] = owner
	return true, nil
}

func (m *mockLease) Release(_ context.Context, userID, profileID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + profileID
	if m.held[key] == owner {
		delete(m.held, key)
	}
	m.released = append(m.released, key)
	return nil
}

// --- files ---

type mockFileStore struct {
	files map[string][]byte
}

func (m *mockFileStore) SaveFile(_ context.Context, category, key string, data []byte, _ string) error {
	m.files[category+"/"+key] = data
	return nil
}

func (m *mockFileStore) GetFile(_ context.Context, category, key string) ([]byte, string, error) {
	data, ok := m.files[category+"/"+key]
	if !ok {
		return nil, "", interfaces.ErrFileNotFound
	}
	return data, "text/csv", nil
}

func (m *mockFileStore) DeleteFile(_ context.Context, category, key string) error {
	delete(m.files, category+"/"+key)
	return nil
}

func (m *mockFileStore) HasFile(_ context.Context, category, key string) (bool, error) {
	_, ok := m.files[category+"/"+key]
	return ok, nil
}

// --- stop ---

type stopFunc func(profileID string) bool

func (f stopFunc) StopRequested(profileID string) bool {
	return f(profileID)
}
