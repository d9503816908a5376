package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
	"github.com/Adda-Baaj/xinwen-sky/pkg/httpclient"
)

const (
	DefaultCCTVBaseURL = "https://api.cntv.cn"

	cctvListPath  = "/NewVideo/getVideoListByColumn"
	cctvServiceID = "tvcctv"
	cctvPageSize  = 100
)

// cctvListResponse is the envelope returned by the column listing endpoint.
type cctvListResponse struct {
	ErrCode json.RawMessage `json:"errcode"`
	Msg     string          `json:"msg"`
	Data    *struct {
		List []cctvNews `json:"list"`
	} `json:"data"`
}

type cctvNews struct {
	Brief string          `json:"brief"`
	Time  string          `json:"time"`
	URL   string          `json:"url"`
	Image string          `json:"image"`
	Mode  json.RawMessage `json:"mode"`
}

// CCTVFetcher lists the videos of a CCTV column for one day.
type CCTVFetcher struct {
	client  HTTPClient
	baseURL string
	log     logger.Logger
}

// NewCCTVFetcher builds a fetcher against baseURL (DefaultCCTVBaseURL when empty).
// A nil client gets a resty client that refuses redirects.
func NewCCTVFetcher(client HTTPClient, baseURL string, log logger.Logger) *CCTVFetcher {
	if client == nil {
		client = httpclient.NewRestyClientWithOptions(httpclient.Options{
			Timeout:     15 * time.Second,
			NoRedirects: true,
		})
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultCCTVBaseURL
	}
	return &CCTVFetcher{client: client, baseURL: baseURL, log: logger.Ensure(log)}
}

// FetchNews returns the non-placeholder items of ch for date (YYYYMMDD).
//
// Transport failures and non-200 answers wrap domain.ErrFetch. An errcode payload is logged and
// returned as domain.ErrProviderReported: the provider had nothing usable to give.
func (f *CCTVFetcher) FetchNews(ctx context.Context, ch Channel, date string) ([]domain.NewsItem, error) {
	if strings.TrimSpace(ch.ColumnID) == "" {
		return nil, fmt.Errorf("%w: channel %q has no column id", domain.ErrFetch, ch.ID)
	}

	reqURL := f.listURL(ch.ColumnID, date)
	resp, err := f.client.Get(ctx, reqURL, Headers(ch))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s column list: %v", domain.ErrFetch, ch.ID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %s column list returned status %d body: %s",
			domain.ErrFetch, ch.ID, resp.StatusCode(), responseSnippet(body))
	}

	var payload cctvListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s column list: %v", domain.ErrFetch, ch.ID, err)
	}

	if len(payload.ErrCode) > 0 {
		f.log.WarnObj("fetch news error", "provider_error", map[string]any{
			"channel": ch.ID,
			"date":    date,
			"errcode": string(payload.ErrCode),
			"msg":     payload.Msg,
			"body":    responseSnippet(body),
		})
		return nil, fmt.Errorf("%w: errcode %s: %s", domain.ErrProviderReported, payload.ErrCode, payload.Msg)
	}
	if payload.Data == nil {
		return nil, fmt.Errorf("%w: %s column list has no data", domain.ErrFetch, ch.ID)
	}

	items := make([]domain.NewsItem, 0, len(payload.Data.List))
	for _, raw := range payload.Data.List {
		if isPlaceholderMode(raw.Mode) {
			continue
		}
		items = append(items, domain.NewsItem{
			Title:         raw.Brief,
			PublishedTime: raw.Time,
			URL:           raw.URL,
			ThumbnailURL:  strings.TrimSpace(raw.Image),
		})
	}

	f.log.DebugObj("news list fetched", "news_list", map[string]any{
		"channel":  ch.ID,
		"date":     date,
		"received": len(payload.Data.List),
		"kept":     len(items),
	})
	return items, nil
}

func (f *CCTVFetcher) listURL(columnID, date string) string {
	q := url.Values{}
	q.Set("id", columnID)
	q.Set("bd", date)
	q.Set("serviceId", cctvServiceID)
	q.Set("n", fmt.Sprint(cctvPageSize))
	return f.baseURL + cctvListPath + "?" + q.Encode()
}

// isPlaceholderMode reports mode == 0, accepting both numeric and quoted forms.
func isPlaceholderMode(raw json.RawMessage) bool {
	v := bytes.Trim(bytes.TrimSpace(raw), `"`)
	return string(v) == "0"
}
