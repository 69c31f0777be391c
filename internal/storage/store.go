// Package storage holds the durable side-store for small named JSON blobs,
// such as the cached project list.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when no blob is stored under a key.
var ErrNotFound = errors.New("blob not found")

// Store reads and writes named blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Clear(ctx context.Context, key string) error
}

// validKey rejects keys that could escape a directory or table namespace.
func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid blob key %q", key)
	}
	return nil
}

// Backends accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend     string
	Dir         string
	SQLitePath  string
	PostgresDSN string
}

// Open returns the configured Store and a function releasing its resources.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }
	switch opts.Backend {
	case "", BackendFile:
		return NewFileStore(opts.Dir), noop, nil
	case BackendMemory:
		return NewMemoryStore(), noop, nil
	case BackendSQLite:
		s, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case BackendPostgres:
		s, err := OpenPostgres(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
