package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
)

// Package storage persists the posted-URL records behind the dedup ledger.

// Store reads and rewrites the full list of dedup records.
type Store interface {
	Close() error
	ReadRecords(ctx context.Context) ([]domain.DedupRecord, error)
	WriteRecords(ctx context.Context, records []domain.DedupRecord) error
}

const (
	TypeJSON  = "json"
	TypeBBolt = "bbolt"

	// SendTimeLayout is the on-disk form of DedupRecord.SentAt (MM/DD/YYYY HH:MM:SS).
	SendTimeLayout = "01/02/2006 15:04:05"
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: %s storage requires a path", domain.ErrStorage, typ)
	}

	switch typ {
	case "", TypeJSON:
		return openJSON(path)
	case TypeBBolt:
		return openBolt(path)
	default:
		return nil, fmt.Errorf("%w: unsupported storage type %q", domain.ErrStorage, typ)
	}
}

func formatSendTime(t time.Time) string {
	return t.In(time.Local).Format(SendTimeLayout)
}

func parseSendTime(raw string) (time.Time, error) {
	return time.ParseInLocation(SendTimeLayout, strings.TrimSpace(raw), time.Local)
}
