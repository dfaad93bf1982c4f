package models

import "time"

// ContentRequest asks the generator for one article.
// Variation > 0 asks for a different rendering of the same underlying data.
type ContentRequest struct {
	Ticker          string
	Variation       int
	ContentType     string
	SiteURL         string
	InternalLinking bool
}

// Article is generated post content.
type Article struct {
	Title    string            `json:"title"`
	HTML     string            `json:"html"`
	Excerpt  string            `json:"excerpt,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MediaHandle identifies an uploaded media item on the CMS.
type MediaHandle struct {
	ID  int    `json:"id"`
	URL string `json:"source_url"`
}

// PostRequest is everything the publisher needs to create a post.
type PostRequest struct {
	SiteURL     string
	Author      Author
	Title       string
	Content     string
	Excerpt     string
	ScheduledAt time.Time
	CategoryID  int
	MediaID     int
	Status      string
}

// PostResult identifies a created post.
type PostResult struct {
	PostID  int    `json:"id"`
	PostURL string `json:"link"`
}

// Progress phases and stages.
const (
	PhaseProfile = "profile"
	PhaseTicker  = "ticker"

	StageStart   = "start"
	StageContent = "content"
	StageImage   = "image"
	StagePublish = "publish"
	StageDone    = "done"
)

// ProgressEvent is a one-way notification about run progress.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	UserID    string    `json:"user_id"`
	ProfileID string    `json:"profile_id"`
	Ticker    string    `json:"ticker,omitempty"`
	Phase     string    `json:"phase"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceBar is one end-of-day price point.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Headline is a news item used to ground generated articles.
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Sentiment   string    `json:"sentiment"`
}
