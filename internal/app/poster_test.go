package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/google/go-cmp/cmp"

	"github.com/Adda-Baaj/xinwen-sky/internal/config"
	"github.com/Adda-Baaj/xinwen-sky/internal/dedup"
	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
	"github.com/Adda-Baaj/xinwen-sky/internal/storage"
	"github.com/Adda-Baaj/xinwen-sky/pkg/bluesky"
	"github.com/Adda-Baaj/xinwen-sky/pkg/notifiers"
	"github.com/Adda-Baaj/xinwen-sky/pkg/providers"
)

type fakeFetcher struct {
	items []domain.NewsItem
	err   error
	calls int
	date  string
}

func (f *fakeFetcher) FetchNews(_ context.Context, _ providers.Channel, date string) ([]domain.NewsItem, error) {
	f.calls++
	f.date = date
	return f.items, f.err
}

type fakeImages struct {
	data      map[string][]byte
	requested []string
}

func (f *fakeImages) FetchImage(_ context.Context, url string) []byte {
	if url == "" {
		return nil
	}
	f.requested = append(f.requested, url)
	return f.data[url]
}

type fakeScraper struct{ found map[string]string }

func (f fakeScraper) DiscoverThumbnail(_ context.Context, pageURL string) string {
	return f.found[pageURL]
}

type fakeSession struct {
	uploads  int
	posts    []*bsky.FeedPost
	failURLs map[string]bool
}

func (s *fakeSession) DID() string { return "did:plc:test" }

func (s *fakeSession) UploadBlob(_ context.Context, data []byte) (*lexutil.LexBlob, error) {
	s.uploads++
	return &lexutil.LexBlob{MimeType: "image/jpeg", Size: int64(len(data))}, nil
}

func (s *fakeSession) CreatePost(_ context.Context, post *bsky.FeedPost) (*bluesky.PostRef, error) {
	uri := post.Embed.EmbedExternal.External.Uri
	if s.failURLs[uri] {
		return nil, errors.New("upstream rejected record")
	}
	s.posts = append(s.posts, post)
	return &bluesky.PostRef{URI: fmt.Sprintf("at://did:plc:test/app.bsky.feed.post/%d", len(s.posts))}, nil
}

type fakeAuth struct {
	sess  *fakeSession
	err   error
	calls int
}

func (a *fakeAuth) Authenticate(context.Context, string, string, string) (bluesky.Session, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.sess, nil
}

type fakeHook struct{ calls int }

func (h *fakeHook) Name() string { return "fake" }
func (h *fakeHook) AfterRun(context.Context) error {
	h.calls++
	return nil
}

type fakeAnnouncer struct{ events []notifiers.Event }

func (a *fakeAnnouncer) Notify(_ context.Context, evt notifiers.Event) (int, error) {
	a.events = append(a.events, evt)
	return 1, nil
}

type harness struct {
	poster    *Poster
	fetcher   *fakeFetcher
	images    *fakeImages
	auth      *fakeAuth
	hook      *fakeHook
	announcer *fakeAnnouncer
	path      string
}

func newHarness(t *testing.T, ledger string, items []domain.NewsItem) *harness {
	t.Helper()

	path := filepath.Join(t.TempDir(), "12h_news.json")
	if err := os.WriteFile(path, []byte(ledger), 0o644); err != nil {
		t.Fatalf("write ledger: %v", err)
	}
	store, err := storage.NewStore(storage.TypeJSON, path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	channels, err := providers.NewRegistry(providers.DefaultChannels()...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	cfg := &config.Config{
		Channel:       "xwlb",
		Service:       "default",
		Username:      "news.bsky.social",
		Password:      "app-pass",
		PostLanguages: []string{"zh"},
		PreviewLimit:  3,
	}

	h := &harness{
		fetcher:   &fakeFetcher{items: items},
		images:    &fakeImages{data: map[string][]byte{}},
		auth:      &fakeAuth{sess: &fakeSession{failURLs: map[string]bool{}}},
		hook:      &fakeHook{},
		announcer: &fakeAnnouncer{},
		path:      path,
	}
	h.poster = &Poster{
		cfg:       cfg,
		channels:  channels,
		fetcher:   h.fetcher,
		scraper:   fakeScraper{},
		images:    h.images,
		auth:      h.auth,
		publisher: bluesky.NewPublisher(logger.NopLogger{}),
		announcer: h.announcer,
		hooks:     []AfterRunHook{h.hook},
		store:     store,
		ledger:    dedup.NewLedger(store, 12*time.Hour, 48*time.Hour),
		log:       logger.NopLogger{},
		now:       time.Now,
	}
	return h
}

func ledgerJSON(entries map[string]time.Time) string {
	var buf bytes.Buffer
	buf.WriteString("[")
	first := true
	for url, at := range entries {
		if !first {
			buf.WriteString(",")
		}
		first = false
		fmt.Fprintf(&buf, `{"url":%q,"send_time":%q}`, url, at.Format(storage.SendTimeLayout))
	}
	buf.WriteString("]")
	return buf.String()
}

func newsItems(ids ...string) []domain.NewsItem {
	out := make([]domain.NewsItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.NewsItem{
			Title:         "标题 " + id,
			PublishedTime: "2024-03-01 19:00:00",
			URL:           "https://tv.cctv.com/" + id + ".shtml",
			ThumbnailURL:  "https://p1.img.cctvpic.com/" + id + ".jpg",
		})
	}
	return out
}

func postedURLs(sess *fakeSession) []string {
	var out []string
	for _, p := range sess.posts {
		out = append(out, p.Embed.EmbedExternal.External.Uri)
	}
	return out
}

func storedURLs(t *testing.T, path string) map[string]bool {
	t.Helper()
	store, err := storage.NewStore(storage.TypeJSON, path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	records, err := store.ReadRecords(context.Background())
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.URL] = true
	}
	return out
}

func TestRunPostsOnlyUnseenItems(t *testing.T) {
	items := newsItems("a", "b", "c")
	h := newHarness(t, ledgerJSON(map[string]time.Time{items[0].URL: time.Now().Add(-time.Hour)}), items)
	for _, it := range items {
		h.images.data[it.ThumbnailURL] = []byte("jpeg")
	}

	if err := h.poster.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sess := h.auth.sess
	if diff := cmp.Diff([]string{items[1].URL, items[2].URL}, postedURLs(sess)); diff != "" {
		t.Fatalf("posted mismatch (-want +got):\n%s", diff)
	}
	if sess.uploads != 2 {
		t.Fatalf("expected 2 thumbnail uploads, got %d", sess.uploads)
	}
	if h.auth.calls != 1 {
		t.Fatalf("expected a single session, got %d", h.auth.calls)
	}

	stored := storedURLs(t, h.path)
	for _, it := range items {
		if !stored[it.URL] {
			t.Fatalf("expected %s in ledger file, got %v", it.URL, stored)
		}
	}
	if h.hook.calls != 1 {
		t.Fatalf("expected hook to run once, got %d", h.hook.calls)
	}
	if len(h.announcer.events) != 2 || h.announcer.events[0].Channel != "xwlb" {
		t.Fatalf("unexpected announcements %#v", h.announcer.events)
	}
}

func TestRunProviderErrorFailsWithoutSideEffects(t *testing.T) {
	original := ledgerJSON(map[string]time.Time{"https://tv.cctv.com/old.shtml": time.Now().Add(-2 * time.Hour)})
	h := newHarness(t, original, nil)
	h.fetcher.err = fmt.Errorf("%w: errcode 1001", domain.ErrProviderReported)

	err := h.poster.Run(context.Background())
	if !errors.Is(err, domain.ErrProviderReported) {
		t.Fatalf("expected ErrProviderReported, got %v", err)
	}
	if h.auth.calls != 0 || len(h.auth.sess.posts) != 0 {
		t.Fatalf("expected no posting after fetch failure")
	}
	got, _ := os.ReadFile(h.path)
	if string(got) != original {
		t.Fatalf("ledger file modified: %s", got)
	}
	if h.hook.calls != 0 {
		t.Fatalf("hook must not run on failure")
	}
}

func TestRunImageFailureStillPublishes(t *testing.T) {
	items := newsItems("b")
	h := newHarness(t, "[]", items)

	if err := h.poster.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sess := h.auth.sess
	if len(sess.posts) != 1 {
		t.Fatalf("expected 1 post, got %d", len(sess.posts))
	}
	if sess.uploads != 0 {
		t.Fatalf("expected no upload without image data")
	}
	if sess.posts[0].Embed.EmbedExternal.External.Thumb != nil {
		t.Fatalf("expected embed without thumb")
	}
	if !storedURLs(t, h.path)[items[0].URL] {
		t.Fatalf("expected item recorded")
	}
}

func TestRunPreviewModeCapsAndSkipsHooks(t *testing.T) {
	items := newsItems("a", "b", "c", "d", "e")
	h := newHarness(t, "[]", items)
	h.poster.cfg.Dev = true
	for _, it := range items {
		h.images.data[it.ThumbnailURL] = []byte("jpeg")
	}

	if err := h.poster.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{items[0].URL, items[1].URL, items[2].URL}
	if diff := cmp.Diff(want, postedURLs(h.auth.sess)); diff != "" {
		t.Fatalf("posted mismatch (-want +got):\n%s", diff)
	}
	if len(h.images.requested) != 3 {
		t.Fatalf("images past the preview cap should not be downloaded, got %v", h.images.requested)
	}
	if h.hook.calls != 0 {
		t.Fatalf("hooks must not run in preview mode")
	}
	if got := len(storedURLs(t, h.path)); got != 3 {
		t.Fatalf("expected 3 recorded URLs, got %d", got)
	}
}

func TestRunUnknownChannel(t *testing.T) {
	h := newHarness(t, "[]", newsItems("a"))
	h.poster.cfg.Channel = "sports"

	err := h.poster.Run(context.Background())
	if !errors.Is(err, domain.ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
	if h.fetcher.calls != 0 {
		t.Fatalf("fetcher must not be called for an unknown channel")
	}
}

func TestRunPartialPublishFailure(t *testing.T) {
	items := newsItems("b", "c")
	h := newHarness(t, "[]", items)
	h.auth.sess.failURLs[items[1].URL] = true

	err := h.poster.Run(context.Background())
	if !errors.Is(err, domain.ErrPublish) {
		t.Fatalf("expected ErrPublish, got %v", err)
	}

	stored := storedURLs(t, h.path)
	if !stored[items[0].URL] || stored[items[1].URL] {
		t.Fatalf("expected only the published item recorded, got %v", stored)
	}
	if h.hook.calls != 1 {
		t.Fatalf("hook should still run after a partial success")
	}
}

func TestRunNothingNew(t *testing.T) {
	items := newsItems("a")
	original := ledgerJSON(map[string]time.Time{items[0].URL: time.Now().Add(-time.Hour)})
	h := newHarness(t, original, items)

	if err := h.poster.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.auth.calls != 0 {
		t.Fatalf("expected no authentication when nothing is new")
	}
	got, _ := os.ReadFile(h.path)
	if string(got) != original {
		t.Fatalf("ledger file should be untouched")
	}
}

func TestRunAuthFailure(t *testing.T) {
	h := newHarness(t, "[]", newsItems("a"))
	h.auth.err = fmt.Errorf("%w: invalid password", domain.ErrAuth)

	if err := h.poster.Run(context.Background()); !errors.Is(err, domain.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
}

func TestRunDiscoversMissingThumbnail(t *testing.T) {
	items := newsItems("a")
	items[0].ThumbnailURL = ""
	h := newHarness(t, "[]", items)
	h.poster.scraper = fakeScraper{found: map[string]string{items[0].URL: "https://tv.cctv.com/og.jpg"}}
	h.images.data["https://tv.cctv.com/og.jpg"] = []byte("jpeg")

	if err := h.poster.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.auth.sess.uploads != 1 {
		t.Fatalf("expected discovered thumbnail to be uploaded")
	}
}

func TestNewsDate(t *testing.T) {
	p := &Poster{
		cfg: &config.Config{},
		now: func() time.Time { return time.Date(2024, 3, 1, 17, 30, 0, 0, time.UTC) },
	}
	if got := p.newsDate(); got != "20240302" {
		t.Fatalf("expected UTC+8 date 20240302, got %s", got)
	}

	p.cfg.Date = "20240115"
	if got := p.newsDate(); got != "20240115" {
		t.Fatalf("expected override, got %s", got)
	}
}
