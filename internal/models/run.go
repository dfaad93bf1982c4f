package models

import (
	"time"
)

// Terminal per-ticker and per-profile statuses.
const (
	StatusScheduled         = "Scheduled"
	StatusHalted            = "Halted"
	StatusHaltedAfterGen    = "Halted – After Gen"
	StatusHaltedAfterImage  = "Halted – After Image"
	StatusSkippedPublished  = "Skipped – Already Published"
	StatusSkippedNoAuthors  = "Skipped – No Authors"
	StatusSkippedLimit      = "Skipped – Limit"
	StatusSkippedNoTickers  = "Skipped – No Tickers"
	StatusSkippedInvalid    = "Skipped – Invalid Config"
	StatusSkippedInProgress = "Skipped – Run In Progress"
	StatusFailedContent     = "Failed: Content Gen"
	StatusFailedPost        = "Failed: WP Post"
	StatusFailedInternal    = "Failed: Internal Error"
	StatusCompleted         = "Completed"
	StatusCapped            = "Completed – Cap Reached"
	StatusDailyLimit        = "Completed – Daily Limit Reached"
)

// HaltedMessage is the human-readable cause attached to halt outcomes.
const HaltedMessage = "Halted by user"

// Ticker source kinds reported by the resolver.
const (
	SourceManual       = "manual"
	SourceUploadedFile = "uploaded_file"
	SourceSpreadsheet  = "spreadsheet_or_state"
)

// FileCategoryTickers is the file store category for uploaded ticker lists.
const FileCategoryTickers = "tickers"

// FileRef points at an uploaded ticker file held in the file store.
type FileRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// TickerOverride replaces the profile's default ticker source for one run.
// Republish allows tickers already published on the profile to be published
// again as a variation.
type TickerOverride struct {
	Manual       []string `json:"manual,omitempty"`
	UploadedFile *FileRef `json:"uploaded_file,omitempty"`
	Republish    bool     `json:"republish,omitempty"`
}

// RunRequest is the input of a publishing run.
type RunRequest struct {
	RunID           string
	UserID          string
	Profiles        []ProfileConfig
	RequestedCounts map[string]int
	Overrides       map[string]TickerOverride
}

// TickerOutcome is the terminal result of one ticker in a run.
type TickerOutcome struct {
	Ticker       string     `json:"ticker"`
	Status       string     `json:"status"`
	Message      string     `json:"message,omitempty"`
	Writer       string     `json:"writer,omitempty"`
	Variation    int        `json:"variation,omitempty"`
	GeneratedAt  *time.Time `json:"generated_at,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	PostID       int        `json:"post_id,omitempty"`
	PostURL      string     `json:"post_url,omitempty"`
	RecordedAt   time.Time  `json:"recorded_at"`
}

// RunResult summarises one profile's part of a run.
type RunResult struct {
	RunID       string          `json:"run_id"`
	ProfileID   string          `json:"profile_id"`
	ProfileName string          `json:"profile_name"`
	Status      string          `json:"status"`
	Summary     string          `json:"summary"`
	Source      string          `json:"source,omitempty"`
	Halted      bool            `json:"halted"`
	Capped      bool            `json:"capped"`
	Published   int             `json:"published"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	Outcomes    []TickerOutcome `json:"outcomes"`
	Warnings    []string        `json:"warnings,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// StatusRecord is the latest status of a ticker, kept for live dashboards.
type StatusRecord struct {
	RunID     string        `json:"run_id"`
	Outcome   TickerOutcome `json:"outcome"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// HistoryEntry is one profile run appended to the historical log.
type HistoryEntry struct {
	RunID      string          `json:"run_id"`
	UserID     string          `json:"user_id"`
	ProfileID  string          `json:"profile_id"`
	Status     string          `json:"status"`
	Summary    string          `json:"summary"`
	Outcomes   []TickerOutcome `json:"outcomes"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// TickerResolution is the ordered ticker list chosen for a profile.
// StartIndex is the uploaded-file offset of Tickers[0], or -1 for other sources.
type TickerResolution struct {
	Source     string   `json:"source"`
	Tickers    []string `json:"tickers"`
	StartIndex int      `json:"start_index"`
	Warnings   []string `json:"warnings,omitempty"`
}
