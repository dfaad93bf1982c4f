package interfaces

import (
	"context"

	"github.com/bobmcallan/tickzen/internal/models"
)

// ContentGenerator produces article HTML and a title for a ticker.
type ContentGenerator interface {
	Generate(ctx context.Context, req models.ContentRequest) (*models.Article, error)
}

// ImageGenerator renders a feature image for a post.
type ImageGenerator interface {
	RenderFeatureImage(ctx context.Context, ticker, title string) ([]byte, error)
}

// AssetUploader uploads media to the target site.
type AssetUploader interface {
	UploadMedia(ctx context.Context, siteURL string, author models.Author, filename string, data []byte) (*models.MediaHandle, error)
}

// Publisher creates posts on the target site.
type Publisher interface {
	CreatePost(ctx context.Context, req models.PostRequest) (*models.PostResult, error)
}

// ProgressSink receives fire-and-forget progress notifications.
type ProgressSink interface {
	Emit(event models.ProgressEvent)
}

// MarketDataClient supplies price history and headlines for a ticker.
type MarketDataClient interface {
	GetPriceHistory(ctx context.Context, ticker string, days int) ([]models.PriceBar, error)
	GetHeadlines(ctx context.Context, ticker string, limit int) ([]models.Headline, error)
}
