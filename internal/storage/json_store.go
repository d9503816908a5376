package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Adda-Baaj/xinwen-sky/internal/domain"
)

// jsonRecord is the wire shape of one entry in the dedup file.
type jsonRecord struct {
	URL      string `json:"url"`
	SendTime string `json:"send_time"`
}

// jsonStore keeps records as a single JSON array in a file that must already exist.
type jsonStore struct {
	path string
}

func openJSON(path string) (Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: dedup file %s does not exist", domain.ErrStorage, path)
		}
		return nil, fmt.Errorf("%w: stat dedup file: %v", domain.ErrStorage, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: dedup path %s is a directory", domain.ErrStorage, path)
	}
	return &jsonStore{path: path}, nil
}

func (j *jsonStore) Close() error { return nil }

// ReadRecords decodes the whole file; any unreadable entry fails the load.
func (j *jsonStore) ReadRecords(_ context.Context) ([]domain.DedupRecord, error) {
	raw, err := os.ReadFile(j.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read dedup file: %v", domain.ErrStorage, err)
	}

	var entries []jsonRecord
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: decode dedup file %s: %v", domain.ErrStorage, j.path, err)
	}

	records := make([]domain.DedupRecord, 0, len(entries))
	for i, e := range entries {
		sentAt, err := parseSendTime(e.SendTime)
		if err != nil {
			return nil, fmt.Errorf("%w: record[%d] send_time %q: %v", domain.ErrStorage, i, e.SendTime, err)
		}
		records = append(records, domain.DedupRecord{URL: e.URL, SentAt: sentAt})
	}
	return records, nil
}

// WriteRecords replaces the file content via a temp file and rename.
func (j *jsonStore) WriteRecords(_ context.Context, records []domain.DedupRecord) error {
	entries := make([]jsonRecord, 0, len(records))
	for _, r := range records {
		entries = append(entries, jsonRecord{URL: r.URL, SendTime: formatSendTime(r.SentAt)})
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: encode dedup records: %v", domain.ErrStorage, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(j.path), filepath.Base(j.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", domain.ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write temp file: %v", domain.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return fmt.Errorf("%w: replace dedup file: %v", domain.ErrStorage, err)
	}
	return nil
}
