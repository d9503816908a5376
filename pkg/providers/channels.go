package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package providers contains the news channel registry and the CCTV column fetcher.

// Channel maps a short alias (the --lm flag) to a provider column identifier.
type Channel struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	ColumnID string         `json:"column_id" yaml:"column_id"`
	Config   map[string]any `json:"config" yaml:"config"`
}

type channelsFile struct {
	Channels []Channel `json:"channels" yaml:"channels"`
}

// DefaultChannels returns the built-in CCTV columns.
func DefaultChannels() []Channel {
	return []Channel{
		{ID: "xwlb", Name: "新闻联播", ColumnID: "TOPC1451528971114112"},
		{ID: "xw30f", Name: "新闻30分", ColumnID: "TOPC1451559097947700"},
	}
}

// Registry holds the known channels keyed by alias.
type Registry struct {
	mu  sync.RWMutex
	idx map[string]Channel
}

// NewRegistry builds a registry from channels; later entries override earlier ones with the same id.
func NewRegistry(channels ...Channel) (*Registry, error) {
	reg := &Registry{idx: make(map[string]Channel, len(channels))}
	for i, ch := range channels {
		ch = sanitizeChannel(ch)
		if err := validateChannel(ch); err != nil {
			return nil, fmt.Errorf("channel[%d]: %w", i, err)
		}
		reg.idx[ch.ID] = ch
	}
	return reg, nil
}

// LoadRegistry returns the built-in channels, extended or overridden by the YAML/JSON file at path.
// An empty path yields the built-ins only.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NewRegistry(DefaultChannels()...)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open channels file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}

	parsed, err := parseChannels(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(parsed.Channels))
	for i, ch := range parsed.Channels {
		id := strings.ToLower(strings.TrimSpace(ch.ID))
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("channel[%d]: duplicate channel id %q", i, id)
		}
		seen[id] = struct{}{}
	}

	return NewRegistry(append(DefaultChannels(), parsed.Channels...)...)
}

func parseChannels(data []byte, ext string) (channelsFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var out channelsFile
		if err := d.fn(data, &out); err == nil {
			return out, nil
		}
	}

	return channelsFile{}, errors.New("channels file format not recognized (expected YAML or JSON)")
}

func sanitizeChannel(ch Channel) Channel {
	ch.ID = strings.ToLower(strings.TrimSpace(ch.ID))
	ch.Name = strings.TrimSpace(ch.Name)
	ch.ColumnID = strings.TrimSpace(ch.ColumnID)
	if ch.Config == nil {
		ch.Config = map[string]any{}
	}
	return ch
}

func validateChannel(ch Channel) error {
	if ch.ID == "" {
		return errors.New("id is required")
	}
	if ch.ColumnID == "" {
		return fmt.Errorf("column_id is required for channel %q", ch.ID)
	}
	return nil
}

// Lookup returns the channel registered under id.
func (r *Registry) Lookup(id string) (Channel, bool) {
	if r == nil {
		return Channel{}, false
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Channel{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.idx[id]
	return ch, ok
}

// IDs returns the registered aliases in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.idx))
	for id := range r.idx {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
