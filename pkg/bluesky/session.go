// Package bluesky posts news items to a Bluesky (AT Protocol) account.
package bluesky

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
)

const (
	// DefaultService is the PDS used when the configured endpoint is "default".
	DefaultService = "https://bsky.social"

	postCollection = "app.bsky.feed.post"
)

// PostRef identifies a created post record.
type PostRef struct {
	URI string
	CID string
}

// Session is an authenticated connection to a PDS.
type Session interface {
	DID() string
	UploadBlob(ctx context.Context, data []byte) (*lexutil.LexBlob, error)
	CreatePost(ctx context.Context, post *bsky.FeedPost) (*PostRef, error)
}

// ResolveService maps "default" (or empty) to DefaultService and returns anything else unchanged.
func ResolveService(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" || strings.EqualFold(endpoint, "default") {
		return DefaultService
	}
	return strings.TrimRight(endpoint, "/")
}

// Authenticator opens sessions over a shared HTTP client.
type Authenticator struct {
	httpClient *http.Client
}

// NewAuthenticator builds an Authenticator. A nil client falls back to http.DefaultClient.
func NewAuthenticator(httpClient *http.Client) *Authenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Authenticator{httpClient: httpClient}
}

// Authenticate creates a session on endpoint with the given credentials.
func (a *Authenticator) Authenticate(ctx context.Context, endpoint, username, password string) (Session, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrAuth)
	}

	client := &xrpc.Client{
		Client: a.httpClient,
		Host:   ResolveService(endpoint),
	}

	out, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: username,
		Password:   password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create session on %s: %v", domain.ErrAuth, client.Host, err)
	}

	client.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Handle:     out.Handle,
		Did:        out.Did,
	}
	return &xrpcSession{client: client}, nil
}

// xrpcSession implements Session over an authenticated xrpc client.
type xrpcSession struct {
	client *xrpc.Client
}

func (s *xrpcSession) DID() string { return s.client.Auth.Did }

func (s *xrpcSession) UploadBlob(ctx context.Context, data []byte) (*lexutil.LexBlob, error) {
	out, err := comatproto.RepoUploadBlob(ctx, s.client, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return out.Blob, nil
}

func (s *xrpcSession) CreatePost(ctx context.Context, post *bsky.FeedPost) (*PostRef, error) {
	out, err := comatproto.RepoCreateRecord(ctx, s.client, &comatproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       s.client.Auth.Did,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return nil, fmt.Errorf("create post record: %w", err)
	}
	return &PostRef{URI: out.Uri, CID: out.Cid}, nil
}
