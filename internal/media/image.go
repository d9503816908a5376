// Package media downloads post thumbnails.
package media

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
	"github.com/Adda-Baaj/xinwen-sky/pkg/httpclient"
)

// ImageFetcher downloads thumbnail images without following redirects.
type ImageFetcher struct {
	client httpclient.Client
	log    logger.Logger
}

// NewImageFetcher wraps client. A nil client gets a resty client with the given timeout and proxy
// that refuses redirects.
func NewImageFetcher(client httpclient.Client, timeout time.Duration, proxy string, log logger.Logger) *ImageFetcher {
	if client == nil {
		client = httpclient.NewRestyClientWithOptions(httpclient.Options{
			Timeout:     timeout,
			Proxy:       proxy,
			NoRedirects: true,
		})
	}
	return &ImageFetcher{client: client, log: logger.Ensure(log)}
}

// RawFetch downloads url and checks that the answer is a 200 image.
func (f *ImageFetcher) RawFetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageFetch, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status code: %d", domain.ErrImageFetch, resp.StatusCode())
	}
	ct := resp.Header().Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "image/") {
		return nil, fmt.Errorf("%w: content type %q is not image", domain.ErrImageFetch, ct)
	}
	return resp.Body(), nil
}

// FetchImage returns the image bytes, or nil when the download fails for any reason.
func (f *ImageFetcher) FetchImage(ctx context.Context, url string) []byte {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	data, err := f.RawFetch(ctx, url)
	if err != nil {
		f.log.WarnObj("fetch img failed", "image_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return nil
	}
	return data
}
