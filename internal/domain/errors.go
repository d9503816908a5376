package domain

import "errors"

var (
	// ErrUnknownChannel is returned when the requested channel alias is not registered.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrFetch covers transport failures and non-success responses from the news API.
	ErrFetch = errors.New("news fetch failed")
	// ErrProviderReported is returned when the news API answers with an error code.
	ErrProviderReported = errors.New("news provider reported an error")
	// ErrImageFetch covers every thumbnail download failure.
	ErrImageFetch = errors.New("image fetch failed")
	ErrAuth       = errors.New("authentication failed")
	ErrPublish    = errors.New("publish failed")
	ErrStorage    = errors.New("dedup storage error")
)
