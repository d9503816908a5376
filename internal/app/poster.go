package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lexutil "github.com/bluesky-social/indigo/lex/util"

	"github.com/Adda-Baaj/xinwen-sky/internal/compose"
	"github.com/Adda-Baaj/xinwen-sky/internal/config"
	"github.com/Adda-Baaj/xinwen-sky/internal/dedup"
	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
	"github.com/Adda-Baaj/xinwen-sky/internal/media"
	"github.com/Adda-Baaj/xinwen-sky/internal/snapshot"
	"github.com/Adda-Baaj/xinwen-sky/internal/storage"
	"github.com/Adda-Baaj/xinwen-sky/pkg/bluesky"
	"github.com/Adda-Baaj/xinwen-sky/pkg/httpclient"
	"github.com/Adda-Baaj/xinwen-sky/pkg/notifiers"
	"github.com/Adda-Baaj/xinwen-sky/pkg/providers"
)

// newsZone is the zone the CCTV schedule is published in.
var newsZone = time.FixedZone("CST", 8*60*60)

// ImageSource downloads thumbnails; a nil result means no image.
type ImageSource interface {
	FetchImage(ctx context.Context, url string) []byte
}

// ThumbnailFinder looks up a preview image for an article page.
type ThumbnailFinder interface {
	DiscoverThumbnail(ctx context.Context, pageURL string) string
}

// Authenticator opens a Bluesky session.
type Authenticator interface {
	Authenticate(ctx context.Context, endpoint, username, password string) (bluesky.Session, error)
}

// PostPublisher uploads thumbnails and creates posts on an open session.
type PostPublisher interface {
	UploadThumbnail(ctx context.Context, sess bluesky.Session, data []byte) (*lexutil.LexBlob, error)
	Publish(ctx context.Context, sess bluesky.Session, post bluesky.Post) (*bluesky.PostRef, error)
}

// Announcer forwards a published post to downstream sinks.
type Announcer interface {
	Notify(ctx context.Context, evt notifiers.Event) (int, error)
}

// AfterRunHook runs once after a non-preview run that published something.
type AfterRunHook interface {
	Name() string
	AfterRun(ctx context.Context) error
}

// Poster runs one fetch, filter, publish and persist cycle for a channel.
type Poster struct {
	cfg       *config.Config
	channels  *providers.Registry
	fetcher   providers.NewsFetcher
	scraper   ThumbnailFinder
	images    ImageSource
	auth      Authenticator
	publisher PostPublisher
	announcer Announcer
	hooks     []AfterRunHook
	store     storage.Store
	ledger    *dedup.Ledger
	log       logger.Logger
	now       func() time.Time
}

// draft is a news item prepared for publishing.
type draft struct {
	item  domain.NewsItem
	title string
	text  compose.RichText
	image []byte
}

// NewPoster wires the poster runtime from config.
func NewPoster(ctx context.Context, cfg *config.Config, log logger.Logger) (*Poster, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	channels, err := providers.LoadRegistry(cfg.ChannelsFile)
	if err != nil {
		return nil, fmt.Errorf("load channels registry: %w", err)
	}
	log.InfoObj("channels registry loaded", "channels_meta", map[string]any{
		"ids":  channels.IDs(),
		"file": cfg.ChannelsFile,
	})

	announcer, err := buildAnnouncer(ctx, cfg.NotifiersFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.DedupPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":            cfg.StorageType,
		"path":            cfg.DedupPath,
		"window_hours":    cfg.DedupWindowHours,
		"retention_hours": cfg.DedupRetentionHours,
	})

	var hooks []AfterRunHook
	if cfg.SnapshotEnabled {
		hooks = append(hooks, snapshot.NewHook(nil, snapshot.Options{
			Paths:       cfg.SnapshotPaths,
			Message:     cfg.SnapshotMessage,
			AuthorName:  cfg.SnapshotAuthorName,
			AuthorEmail: cfg.SnapshotAuthorEmail,
		}, log))
	}

	newsClient := httpclient.NewRestyClientWithOptions(httpclient.Options{
		Timeout:     cfg.HTTPTimeout,
		NoRedirects: true,
	})

	return &Poster{
		cfg:       cfg,
		channels:  channels,
		fetcher:   providers.NewCCTVFetcher(newsClient, cfg.NewsAPIBase, log),
		scraper:   media.NewScraper(httpclient.NewRestyClient(cfg.HTTPTimeout), log),
		images:    media.NewImageFetcher(nil, cfg.HTTPTimeout, cfg.ImageProxy, log),
		auth:      bluesky.NewAuthenticator(httpclient.NewStdClient(httpclient.Options{Timeout: cfg.HTTPTimeout})),
		publisher: bluesky.NewPublisher(log),
		announcer: announcer,
		hooks:     hooks,
		store:     store,
		ledger:    dedup.NewLedger(store, cfg.DedupWindow, cfg.DedupRetention),
		log:       log,
		now:       time.Now,
	}, nil
}

// buildAnnouncer returns nil when no notifiers file is configured.
func buildAnnouncer(ctx context.Context, path string, log logger.Logger) (Announcer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}

	cfgs, err := notifiers.LoadConfigs(path)
	if err != nil {
		return nil, fmt.Errorf("load notifiers: %w", err)
	}
	enabled := notifiers.Enabled(cfgs)
	built, err := notifiers.BuildAll(ctx, notifiers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.InfoObj("notifiers loaded", "notifiers_meta", map[string]any{
		"count":     len(summaries),
		"notifiers": summaries,
	})
	return notifiers.NewFanout(built), nil
}

// Run executes a single posting cycle. It fails when the channel is unknown, when the news
// fetch yields no usable result, or when any item could not be published.
func (p *Poster) Run(ctx context.Context) error {
	if p == nil || p.ledger == nil {
		return fmt.Errorf("poster is not initialized")
	}
	defer p.closeStore()

	ch, ok := p.channels.Lookup(p.cfg.Channel)
	if !ok {
		return fmt.Errorf("%w: %q (known: %s)", domain.ErrUnknownChannel, p.cfg.Channel, strings.Join(p.channels.IDs(), ", "))
	}
	date := p.newsDate()

	active, records, err := p.ledger.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dedup ledger: %w", err)
	}

	start := p.now()
	p.log.InfoObj("run started", "run_meta", map[string]any{
		"channel":        ch.ID,
		"date":           date,
		"preview":        p.cfg.Dev,
		"ledger_records": len(records),
		"ledger_active":  len(active),
	})

	items, err := p.fetcher.FetchNews(ctx, ch, date)
	if err != nil {
		return fmt.Errorf("fetch %s news for %s: %w", ch.ID, date, err)
	}

	fresh := filterSeen(items, active)
	if p.cfg.Dev && len(fresh) > p.cfg.PreviewLimit {
		fresh = fresh[:p.cfg.PreviewLimit]
	}
	p.log.InfoObj("news filtered", "filter_meta", map[string]any{
		"fetched": len(items),
		"fresh":   len(fresh),
	})
	if len(fresh) == 0 {
		p.log.InfoObj("nothing new to post", "run_meta", map[string]any{"channel": ch.ID, "date": date})
		return nil
	}

	drafts := p.prepare(ctx, fresh)

	sess, err := p.auth.Authenticate(ctx, p.cfg.Service, p.cfg.Username, p.cfg.Password)
	if err != nil {
		return err
	}

	published, errs := p.publishAll(ctx, sess, ch, drafts)

	if published > 0 {
		if err := p.ledger.Save(ctx); err != nil {
			return fmt.Errorf("save dedup ledger: %w", err)
		}
		if !p.cfg.Dev {
			p.runHooks(ctx)
		}
	}

	p.log.InfoObj("run completed", "run_meta", map[string]any{
		"channel":    ch.ID,
		"published":  published,
		"failed":     len(errs),
		"elapsed_ms": p.now().Sub(start).Milliseconds(),
	})

	if len(errs) > 0 {
		return fmt.Errorf("%w: %d of %d posts failed: %w", domain.ErrPublish, len(errs), len(drafts), errors.Join(errs...))
	}
	return nil
}

// newsDate returns the configured override or today's date in UTC+8.
func (p *Poster) newsDate() string {
	if p.cfg.Date != "" {
		return p.cfg.Date
	}
	return p.now().In(newsZone).Format(config.DateLayout)
}

func filterSeen(items []domain.NewsItem, active map[string]struct{}) []domain.NewsItem {
	out := make([]domain.NewsItem, 0, len(items))
	for _, it := range items {
		if _, seen := active[it.URL]; seen {
			continue
		}
		out = append(out, it)
	}
	return out
}

// prepare composes post text and downloads thumbnails. Image failures only cost the thumbnail.
func (p *Poster) prepare(ctx context.Context, items []domain.NewsItem) []draft {
	drafts := make([]draft, 0, len(items))
	for _, it := range items {
		title := compose.TruncateTitle(it.Title)
		if it.ThumbnailURL == "" && p.scraper != nil {
			it.ThumbnailURL = p.scraper.DiscoverThumbnail(ctx, it.URL)
		}
		drafts = append(drafts, draft{
			item:  it,
			title: title,
			text:  compose.Compose(title, it.URL, it.PublishedTime),
			image: p.images.FetchImage(ctx, it.ThumbnailURL),
		})
	}
	return drafts
}

func (p *Poster) publishAll(ctx context.Context, sess bluesky.Session, ch providers.Channel, drafts []draft) (int, []error) {
	var errs []error
	published := 0
	for _, d := range drafts {
		thumb, err := p.publisher.UploadThumbnail(ctx, sess, d.image)
		if err != nil {
			p.log.WarnObj("thumbnail upload failed; posting without it", "upload_error", map[string]any{
				"url":   d.item.URL,
				"error": err.Error(),
			})
			thumb = nil
		}

		ref, err := p.publisher.Publish(ctx, sess, bluesky.Post{
			Text:  d.text,
			Thumb: thumb,
			Title: d.title,
			URL:   d.item.URL,
			Langs: p.cfg.PostLanguages,
		})
		if err != nil {
			p.log.ErrorObj("publish failed", "publish_error", map[string]any{
				"url":   d.item.URL,
				"title": d.title,
				"error": err.Error(),
			})
			errs = append(errs, fmt.Errorf("%s: %w", d.item.URL, err))
			continue
		}

		published++
		p.ledger.Record(d.item.URL, p.now())
		p.log.InfoObj("posted", "post", map[string]any{
			"url":       d.item.URL,
			"title":     d.title,
			"uri":       ref.URI,
			"has_thumb": thumb != nil,
		})
		p.announce(ctx, ch, d, ref)
	}
	return published, errs
}

func (p *Poster) announce(ctx context.Context, ch providers.Channel, d draft, ref *bluesky.PostRef) {
	if p.announcer == nil {
		return
	}
	if _, err := p.announcer.Notify(ctx, notifiers.NewEvent(ch.ID, d.title, d.item.URL, ref.URI)); err != nil {
		p.log.WarnObj("announce failed", "notify_error", map[string]any{
			"url":   d.item.URL,
			"error": err.Error(),
		})
	}
}

// runHooks logs hook failures without failing the run; the posts are already out.
func (p *Poster) runHooks(ctx context.Context) {
	for _, h := range p.hooks {
		if err := h.AfterRun(ctx); err != nil {
			p.log.WarnObj("after-run hook failed", "hook_error", map[string]any{
				"hook":  h.Name(),
				"error": err.Error(),
			})
		}
	}
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (p *Poster) closeStore() {
	if p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		p.log.ErrorObj("storage close failed", "error", err)
	}
}
