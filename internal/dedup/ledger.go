// Package dedup tracks which news URLs were posted recently.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
	"github.com/Adda-Baaj/xinwen-sky/internal/storage"
)

const (
	DefaultWindow    = 12 * time.Hour
	DefaultRetention = 48 * time.Hour
)

// Ledger owns the posted records for one run. Records inside the window form the active set used
// for filtering; records older than the retention horizon are dropped on Save.
type Ledger struct {
	store     storage.Store
	window    time.Duration
	retention time.Duration
	now       func() time.Time

	records []domain.DedupRecord
	active  map[string]struct{}
}

// NewLedger builds a ledger over store. Non-positive durations fall back to the defaults and the
// retention is never shorter than the window.
func NewLedger(store storage.Store, window, retention time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	if retention < window {
		retention = window
	}
	return &Ledger{
		store:     store,
		window:    window,
		retention: retention,
		now:       time.Now,
		active:    map[string]struct{}{},
	}
}

// Load reads every persisted record and computes the active URL set relative to the current time.
// The full record list is returned unfiltered.
func (l *Ledger) Load(ctx context.Context) (map[string]struct{}, []domain.DedupRecord, error) {
	if l == nil || l.store == nil {
		return nil, nil, fmt.Errorf("%w: ledger has no store", domain.ErrStorage)
	}

	records, err := l.store.ReadRecords(ctx)
	if err != nil {
		return nil, nil, err
	}

	cutoff := l.now().Add(-l.window)
	active := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.SentAt.After(cutoff) {
			active[r.URL] = struct{}{}
		}
	}

	l.records = records
	l.active = active
	return l.ActiveURLs(), l.Records(), nil
}

// Seen reports whether url was posted inside the window at load time.
func (l *Ledger) Seen(url string) bool {
	_, ok := l.active[url]
	return ok
}

// ActiveURLs returns a copy of the active set.
func (l *Ledger) ActiveURLs() map[string]struct{} {
	out := make(map[string]struct{}, len(l.active))
	for u := range l.active {
		out[u] = struct{}{}
	}
	return out
}

// Records returns a copy of every record held in memory.
func (l *Ledger) Records() []domain.DedupRecord {
	out := make([]domain.DedupRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Record appends a posted URL. The active set is left as computed at load time.
func (l *Ledger) Record(url string, at time.Time) {
	l.records = append(l.records, domain.DedupRecord{URL: url, SentAt: at})
}

// Save prunes records past the retention horizon and rewrites the backend.
func (l *Ledger) Save(ctx context.Context) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("%w: ledger has no store", domain.ErrStorage)
	}

	cutoff := l.now().Add(-l.retention)
	kept := make([]domain.DedupRecord, 0, len(l.records))
	for _, r := range l.records {
		if r.SentAt.After(cutoff) {
			kept = append(kept, r)
		}
	}

	if err := l.store.WriteRecords(ctx, kept); err != nil {
		return err
	}
	l.records = kept
	return nil
}
