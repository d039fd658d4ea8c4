package feeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package feeds holds the feed source registry (YAML/JSON) and the collector.

// Feed is one named syndication source.
type Feed struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

type registryFile struct {
	Feeds []Feed `json:"feeds" yaml:"feeds"`
}

// Registry materializes feed definitions loaded from config files.
type Registry struct {
	mu    sync.RWMutex
	feeds []Feed
	idx   map[string]Feed
}

// DefaultFeeds returns the built-in feed set used when no registry file exists.
func DefaultFeeds() []Feed {
	return []Feed{
		{ID: "zenn-trend", Name: "Zenn Trend", URL: "https://zenn.dev/feed"},
		{ID: "qiita-trend", Name: "Qiita Trend", URL: "https://qiita.com/popular-items/feed.atom"},
	}
}

// LoadRegistry loads the feed registry from a YAML/JSON file. A missing file
// falls back to the built-in defaults rather than failing.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return newRegistry(DefaultFeeds())
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newRegistry(DefaultFeeds())
		}
		return nil, fmt.Errorf("open feeds file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Feeds) == 0 {
		return nil, errors.New("feeds file contains no feeds entries")
	}

	return newRegistry(fileReg.Feeds)
}

func newRegistry(entries []Feed) (*Registry, error) {
	reg := &Registry{
		feeds: make([]Feed, len(entries)),
		idx:   make(map[string]Feed, len(entries)),
	}

	for i := range entries {
		f := sanitizeFeed(entries[i])
		if err := validateFeed(f); err != nil {
			return nil, fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if _, exists := reg.idx[f.ID]; exists {
			return nil, fmt.Errorf("duplicate feed id %q", f.ID)
		}
		reg.feeds[i] = f
		reg.idx[f.ID] = f
	}

	return reg, nil
}

// parseRegistry attempts to decode the feeds file content.
func parseRegistry(data []byte, ext string) (registryFile, error) {
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
		var reg registryFile
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("feeds file format not recognized (expected YAML or JSON)")
}

func sanitizeFeed(f Feed) Feed {
	f.ID = strings.TrimSpace(f.ID)
	f.Name = strings.TrimSpace(f.Name)
	f.URL = strings.TrimSpace(f.URL)
	return f
}

func validateFeed(f Feed) error {
	if f.ID == "" {
		return errors.New("id is required")
	}
	if f.Name == "" {
		return fmt.Errorf("name is required for feed %q", f.ID)
	}
	if f.URL == "" {
		return fmt.Errorf("url is required for feed %q", f.ID)
	}
	return nil
}

// ByID returns the feed entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Feed, bool) {
	if r == nil {
		return Feed{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return Feed{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.idx[id]
	return f, ok
}

// All returns a copy of the configured feeds in declaration order.
func (r *Registry) All() []Feed {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Feed, len(r.feeds))
	copy(out, r.feeds)
	return out
}
