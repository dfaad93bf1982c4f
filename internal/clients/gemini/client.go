// Package gemini generates post articles with the Google Gemini API
package gemini

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/bobmcallan/tickzen/internal/common"
	"github.com/bobmcallan/tickzen/internal/interfaces"
	"github.com/bobmcallan/tickzen/internal/models"
)

const (
	DefaultModel     = "gemini-2.0-flash"
	DefaultMinWords  = 300
	priceHistoryDays = 90
	headlineLimit    = 8
)

// ErrInsufficientContent is returned when the model output is too short to publish.
var ErrInsufficientContent = errors.New("generated article is too short")

// textGenerator is the single model call the client depends on.
type textGenerator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

// Client implements ContentGenerator
type Client struct {
	gen      textGenerator
	market   interfaces.MarketDataClient
	model    string
	minWords int
	logger   arbor.ILogger
}

var _ interfaces.ContentGenerator = (*Client)(nil)

// ClientOption configures the client
type ClientOption func(*Client)

// WithModel sets the model to use
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMinWords sets the minimum visible word count of a usable article
func WithMinWords(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.minWords = n
		}
	}
}

// WithMarketData grounds prompts in recent prices and headlines
func WithMarketData(market interfaces.MarketDataClient) ClientOption {
	return func(c *Client) {
		c.market = market
	}
}

// WithLogger sets the logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newClient(&genaiGenerator{client: genaiClient}, opts...), nil
}

func newClient(gen textGenerator, opts ...ClientOption) *Client {
	c := &Client{
		gen:      gen,
		model:    DefaultModel,
		minWords: DefaultMinWords,
		logger:   common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate writes one article for the request's ticker.
func (c *Client) Generate(ctx context.Context, req models.ContentRequest) (*models.Article, error) {
	in := promptInput{Request: req}
	if c.market != nil {
		c.loadMarketData(ctx, &in)
	}

	prompt := buildPrompt(in)
	c.logger.Debug().Str("model", c.model).Str("ticker", req.Ticker).Int("variation", req.Variation).Msg("Generating article")

	markdown, err := c.gen.generate(ctx, c.model, prompt)
	if err != nil {
		return nil, err
	}

	article, words, err := renderArticle(req.Ticker, markdown)
	if err != nil {
		return nil, err
	}
	if words < c.minWords {
		return nil, fmt.Errorf("%w: %d words, need %d", ErrInsufficientContent, words, c.minWords)
	}

	article.Metadata = map[string]string{
		"model":     c.model,
		"ticker":    req.Ticker,
		"variation": fmt.Sprintf("%d", req.Variation),
		"words":     fmt.Sprintf("%d", words),
	}
	return article, nil
}

// loadMarketData fills prices and headlines. Missing data only thins the prompt.
func (c *Client) loadMarketData(ctx context.Context, in *promptInput) {
	ticker := in.Request.Ticker
	bars, err := c.market.GetPriceHistory(ctx, ticker, priceHistoryDays)
	if err != nil {
		c.logger.Warn().Str("ticker", ticker).Err(err).Msg("Price history unavailable for prompt")
	} else {
		in.Bars = bars
	}

	news, err := c.market.GetHeadlines(ctx, ticker, headlineLimit)
	if err != nil {
		c.logger.Warn().Str("ticker", ticker).Err(err).Msg("Headlines unavailable for prompt")
	} else {
		in.Headlines = news
	}
}

// genaiGenerator calls the Gemini API.
type genaiGenerator struct {
	client *genai.Client
}

func (g *genaiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return extractTextFromResponse(result)
}

// extractTextFromResponse extracts text from a generate content response
func extractTextFromResponse(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text := ""
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}

	return text, nil
}
