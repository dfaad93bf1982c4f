package models

import (
	"encoding/json"
	"sort"
	"time"
)

// DateLayout is the calendar date format used for day rollover detection.
const DateLayout = "2006-01-02"

// TickerSet is a set of ticker symbols. It serializes as a sorted list.
type TickerSet map[string]struct{}

// NewTickerSet builds a set from a list of tickers.
func NewTickerSet(tickers ...string) TickerSet {
	s := make(TickerSet, len(tickers))
	for _, t := range tickers {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the ticker is in the set.
func (s TickerSet) Has(ticker string) bool {
	_, ok := s[ticker]
	return ok
}

// Add inserts the ticker.
func (s TickerSet) Add(ticker string) {
	s[ticker] = struct{}{}
}

// Sorted returns the members in ascending order.
func (s TickerSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s TickerSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TickerSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewTickerSet(list...)
	return nil
}

// UploadedFileMeta tracks an uploaded ticker file across runs so it can be resumed.
type UploadedFileMeta struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Total      int       `json:"total"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ProfileState is the persisted publishing state of one (user, profile) pair.
type ProfileState struct {
	PendingTickers             []string          `json:"pending_tickers"`
	FailedTickers              []string          `json:"failed_tickers"`
	PublishedTickersLog        TickerSet         `json:"published_tickers_log"`
	TickerPublishCount         map[string]int    `json:"ticker_publish_count"`
	PostsToday                 int               `json:"posts_today"`
	LastSuccessfulScheduleTime *time.Time        `json:"last_successful_schedule_time,omitempty"`
	LastAuthorIndex            int               `json:"last_author_index"`
	LastProcessedTickerIndex   int               `json:"last_processed_ticker_index"`
	UploadedFile               *UploadedFileMeta `json:"uploaded_file,omitempty"`
	ProcessedToday             []TickerOutcome   `json:"processed_today"`
	LastRunDate                string            `json:"last_run_date"`
}

// NewProfileState returns default state for a profile seen for the first time.
func NewProfileState(today string) *ProfileState {
	return &ProfileState{
		PendingTickers:           []string{},
		FailedTickers:            []string{},
		PublishedTickersLog:      TickerSet{},
		TickerPublishCount:       map[string]int{},
		LastAuthorIndex:          -1,
		LastProcessedTickerIndex: -1,
		ProcessedToday:           []TickerOutcome{},
		LastRunDate:              today,
	}
}

// Normalize fills nil collections and repairs out-of-range sentinels on loaded state.
func (s *ProfileState) Normalize() {
	if s.PendingTickers == nil {
		s.PendingTickers = []string{}
	}
	if s.FailedTickers == nil {
		s.FailedTickers = []string{}
	}
	if s.PublishedTickersLog == nil {
		s.PublishedTickersLog = TickerSet{}
	}
	if s.TickerPublishCount == nil {
		s.TickerPublishCount = map[string]int{}
	}
	if s.ProcessedToday == nil {
		s.ProcessedToday = []TickerOutcome{}
	}
	if s.LastAuthorIndex < -1 {
		s.LastAuthorIndex = -1
	}
	if s.LastProcessedTickerIndex < -1 {
		s.LastProcessedTickerIndex = -1
	}
	if s.PostsToday < 0 {
		s.PostsToday = 0
	}
}

// Rollover resets the daily counters when today differs from the last run date.
// The published log survives. Returns true when a reset happened.
func (s *ProfileState) Rollover(today string) bool {
	if s.LastRunDate == today {
		return false
	}
	s.PostsToday = 0
	s.ProcessedToday = []TickerOutcome{}
	s.TickerPublishCount = map[string]int{}
	s.LastRunDate = today
	return true
}

// RecordPublished applies a successful publish as one mutation.
func (s *ProfileState) RecordPublished(ticker string, scheduledFor time.Time) {
	s.PostsToday++
	s.PublishedTickersLog.Add(ticker)
	s.TickerPublishCount[ticker]++
	t := scheduledFor
	s.LastSuccessfulScheduleTime = &t
	s.FailedTickers = removeTicker(s.FailedTickers, ticker)
	s.PendingTickers = removeTicker(s.PendingTickers, ticker)
}

// RecordFailed queues the ticker for a retry in a future run.
func (s *ProfileState) RecordFailed(ticker string) {
	s.PendingTickers = removeTicker(s.PendingTickers, ticker)
	for _, t := range s.FailedTickers {
		if t == ticker {
			return
		}
	}
	s.FailedTickers = append(s.FailedTickers, ticker)
}

// DropPending removes the ticker from the pending queue.
func (s *ProfileState) DropPending(ticker string) {
	s.PendingTickers = removeTicker(s.PendingTickers, ticker)
}

// ClearUploadedFile forgets file-based tracking.
func (s *ProfileState) ClearUploadedFile() {
	s.UploadedFile = nil
	s.LastProcessedTickerIndex = -1
}

func removeTicker(list []string, ticker string) []string {
	out := list[:0]
	for _, t := range list {
		if t != ticker {
			out = append(out, t)
		}
	}
	return out
}

// PublishingState is the state of every profile of one user.
type PublishingState struct {
	UserID   string                   `json:"user_id"`
	Profiles map[string]*ProfileState `json:"profiles"`
}

// Profile returns the state of a profile, creating default state if absent.
func (p *PublishingState) Profile(profileID, today string) *ProfileState {
	if p.Profiles == nil {
		p.Profiles = make(map[string]*ProfileState)
	}
	st, ok := p.Profiles[profileID]
	if !ok || st == nil {
		st = NewProfileState(today)
		p.Profiles[profileID] = st
	}
	return st
}
