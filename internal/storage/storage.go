package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage provides the optional cross-run seen-link cache.

// Store tracks article links the pipeline has already processed.
type Store interface {
	Close() error
	SeenLink(url string) (bool, error)
	MarkLink(url string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	LinkTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultLinkTTL         = 5 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = defaultLinkTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                  { return nil }
func (noopStore) SeenLink(string) (bool, error) { return false, nil }
func (noopStore) MarkLink(string) error         { return nil }
