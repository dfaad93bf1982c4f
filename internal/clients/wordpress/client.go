// Package wordpress publishes posts and media through the WordPress REST API
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultRateLimit = 2 // requests per second, per site
	apiPrefix        = "/wp-json/wp/v2"
	wpTimeLayout     = "2006-01-02T15:04:05"
)

// Client talks to any number of WordPress sites, authenticating with the
// author's application password.
type Client struct {
	httpClient *http.Client
	logger     arbor.ILogger
	rateLimit  int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var (
	_ interfaces.Publisher     = (*Client)(nil)
	_ interfaces.AssetUploader = (*Client)(nil)
)

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the per-site rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.rateLimit = requestsPerSecond
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new WordPress client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     common.NewSilentLogger(),
		rateLimit:  DefaultRateLimit,
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("WordPress API error: %s: %s (status: %d, endpoint: %s)", e.Code, e.Message, e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("WordPress API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

func (c *Client) limiter(site string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[site]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.rateLimit), c.rateLimit)
		c.limiters[site] = l
	}
	return l
}

// do sends an authenticated, rate-limited request and decodes a JSON response.
func (c *Client) do(ctx context.Context, siteURL string, author models.Author, path, contentType string, body io.Reader, extra http.Header, result interface{}) error {
	site := strings.TrimRight(siteURL, "/")
	if err := c.limiter(site).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, site+apiPrefix+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(author.Username, author.AppPassword)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range extra {
		req.Header[k] = v
	}

	c.logger.Debug().Str("site", site).Str("path", path).Str("author", author.Username).Msg("WordPress API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(data), Endpoint: path}
		var wpErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &wpErr) == nil && wpErr.Code != "" {
			apiErr.Code = wpErr.Code
			apiErr.Message = wpErr.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// UploadMedia uploads an image to the site's media library.
func (c *Client) UploadMedia(ctx context.Context, siteURL string, author models.Author, filename string, data []byte) (*models.MediaHandle, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extra := http.Header{}
	extra.Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(filename)))

	var media models.MediaHandle
	if err := c.do(ctx, siteURL, author, "/media", contentType, bytes.NewReader(data), extra, &media); err != nil {
		return nil, err
	}
	if media.ID == 0 {
		return nil, fmt.Errorf("media upload returned no id")
	}
	c.logger.Info().Str("site", siteURL).Int("media_id", media.ID).Msg("Media uploaded")
	return &media, nil
}

type postPayload struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	Excerpt       string `json:"excerpt,omitempty"`
	Status        string `json:"status"`
	DateGMT       string `json:"date_gmt,omitempty"`
	Author        int    `json:"author,omitempty"`
	Categories    []int  `json:"categories,omitempty"`
	FeaturedMedia int    `json:"featured_media,omitempty"`
}

// CreatePost creates a post, scheduled when ScheduledAt is set and status is "future".
func (c *Client) CreatePost(ctx context.Context, req models.PostRequest) (*models.PostResult, error) {
	payload := postPayload{
		Title:         req.Title,
		Content:       req.Content,
		Excerpt:       req.Excerpt,
		Status:        req.Status,
		Author:        req.Author.UserID,
		FeaturedMedia: req.MediaID,
	}
	if payload.Status == "" {
		payload.Status = "future"
	}
	if !req.ScheduledAt.IsZero() {
		payload.DateGMT = req.ScheduledAt.UTC().Format(wpTimeLayout)
	}
	if req.CategoryID > 0 {
		payload.Categories = []int{req.CategoryID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode post: %w", err)
	}

	var post models.PostResult
	if err := c.do(ctx, req.SiteURL, req.Author, "/posts", "application/json", bytes.NewReader(body), nil, &post); err != nil {
		return nil, err
	}
	if post.PostID == 0 {
		return nil, fmt.Errorf("post creation returned no id")
	}
	c.logger.Info().Str("site", req.SiteURL).Int("post_id", post.PostID).Str("status", payload.Status).Msg("Post created")
	return &post, nil
}
