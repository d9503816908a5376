package providers

import (
	"context"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/pkg/httpclient"
)

// NewsFetcher lists the news items a channel published on a given day.
type NewsFetcher interface {
	FetchNews(ctx context.Context, ch Channel, date string) ([]domain.NewsItem, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client
