package bluesky

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/Adda-Baaj/xinwen-sky/internal/compose"
	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/internal/logger"
)

const (
	blobTooLarge = "BlobTooLarge"
	maxAttempts  = 2
)

// Post is one news item ready to be published.
type Post struct {
	Text  compose.RichText
	Thumb *lexutil.LexBlob
	Title string
	URL   string
	Langs []string
}

// Publisher uploads thumbnails and creates link-preview posts.
type Publisher struct {
	log logger.Logger
	now func() time.Time
}

// NewPublisher builds a Publisher.
func NewPublisher(log logger.Logger) *Publisher {
	return &Publisher{log: logger.Ensure(log), now: time.Now}
}

// UploadThumbnail uploads data as a blob. Nil or empty data is a no-op returning nil.
func (p *Publisher) UploadThumbnail(ctx context.Context, sess Session, data []byte) (*lexutil.LexBlob, error) {
	if len(data) == 0 {
		return nil, nil
	}
	blob, err := sess.UploadBlob(ctx, data)
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// Publish creates the post. When the PDS rejects the thumbnail as too large the post is sent once
// more without it; every other failure is returned wrapped in domain.ErrPublish.
func (p *Publisher) Publish(ctx context.Context, sess Session, post Post) (*PostRef, error) {
	embed := externalEmbed(post.Title, post.URL, post.Thumb)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ref, err := sess.CreatePost(ctx, p.feedPost(post, embed))
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if !isBlobTooLarge(err) || embed.External.Thumb == nil {
			break
		}
		p.log.WarnObj("thumbnail too large; retrying without it", "publish_retry", map[string]any{
			"url":   post.URL,
			"error": err.Error(),
		})
		embed = externalEmbed(post.Title, post.URL, nil)
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrPublish, lastErr)
}

func (p *Publisher) feedPost(post Post, embed *bsky.EmbedExternal) *bsky.FeedPost {
	return &bsky.FeedPost{
		LexiconTypeID: "app.bsky.feed.post",
		Text:          post.Text.Text,
		Facets:        linkFacets(post.Text.Links),
		Embed:         &bsky.FeedPost_Embed{EmbedExternal: embed},
		Langs:         post.Langs,
		CreatedAt:     p.now().UTC().Format(time.RFC3339),
	}
}

// externalEmbed returns a fresh link-preview embed; description repeats the title.
func externalEmbed(title, uri string, thumb *lexutil.LexBlob) *bsky.EmbedExternal {
	return &bsky.EmbedExternal{
		LexiconTypeID: "app.bsky.embed.external",
		External: &bsky.EmbedExternal_External{
			Title:       title,
			Description: title,
			Uri:         uri,
			Thumb:       thumb,
		},
	}
}

func linkFacets(links []compose.LinkFacet) []*bsky.RichtextFacet {
	if len(links) == 0 {
		return nil
	}
	facets := make([]*bsky.RichtextFacet, 0, len(links))
	for _, l := range links {
		facets = append(facets, &bsky.RichtextFacet{
			Index: &bsky.RichtextFacet_ByteSlice{
				ByteStart: int64(l.ByteStart),
				ByteEnd:   int64(l.ByteEnd),
			},
			Features: []*bsky.RichtextFacet_Features_Elem{{
				RichtextFacet_Link: &bsky.RichtextFacet_Link{
					LexiconTypeID: "app.bsky.richtext.facet#link",
					Uri:           l.URI,
				},
			}},
		})
	}
	return facets
}

// isBlobTooLarge reports whether err is the PDS rejecting an oversized blob.
func isBlobTooLarge(err error) bool {
	if err == nil {
		return false
	}
	var xe *xrpc.XRPCError
	if errors.As(err, &xe) && xe.ErrStr == blobTooLarge {
		return true
	}
	var wrapped *xrpc.Error
	if errors.As(err, &wrapped) {
		if inner, ok := wrapped.Wrapped.(*xrpc.XRPCError); ok && inner.ErrStr == blobTooLarge {
			return true
		}
	}
	return strings.Contains(err.Error(), blobTooLarge)
}
