package media

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
	"github.com/Adda-Baaj/xinwen-sky/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// Scraper looks up a page's preview image for items that came without one.
type Scraper struct {
	client httpclient.Client
	log    logger.Logger
}

// NewScraper creates a new Scraper with the given HTTP client and logger.
func NewScraper(client httpclient.Client, log logger.Logger) *Scraper {
	return &Scraper{client: client, log: logger.Ensure(log)}
}

// DiscoverThumbnail returns the absolute og:image URL of pageURL, or "" when none can be found.
func (s *Scraper) DiscoverThumbnail(ctx context.Context, pageURL string) string {
	if s == nil || s.client == nil || strings.TrimSpace(pageURL) == "" {
		return ""
	}

	image, err := s.fetchImageMeta(ctx, pageURL)
	if err != nil {
		s.log.WarnObj("thumbnail discovery failed", "metadata_error", map[string]any{
			"url":   pageURL,
			"error": err.Error(),
		})
		return ""
	}
	return resolveURL(image, pageURL)
}

func (s *Scraper) fetchImageMeta(ctx context.Context, pageURL string) (string, error) {
	resp, err := s.client.Get(ctx, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		snippet := strings.TrimSpace(string(resp.Body()))
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return "", fmt.Errorf("status %d body: %s", resp.StatusCode(), snippet)
	}

	body := resp.Body()
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}
	return parseImageMeta(body)
}

// parseImageMeta extracts the preview image from og:image, falling back to twitter:image.
func parseImageMeta(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return firstNonEmpty(
		extract(`meta[property="og:image"]`),
		extract(`meta[name="twitter:image"]`),
	), nil
}

// firstNonEmpty returns the first non-empty string from the given values.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolveURL resolves a possibly relative URL against a base URL.
func resolveURL(raw, base string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if parsed.IsAbs() {
		return parsed.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}

	return baseURL.ResolveReference(parsed).String()
}
