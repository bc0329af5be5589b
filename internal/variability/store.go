package variability

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Loader fetches and parses the light curve stored under key. Loaders signal
// missing data with an error wrapping ErrNoData or fs.ErrNotExist.
type Loader interface {
	Load(ctx context.Context, key string) (*Table, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, key string) (*Table, error)

func (f LoaderFunc) Load(ctx context.Context, key string) (*Table, error) { return f(ctx, key) }

// DirLoader reads text light curves from files below Root.
type DirLoader struct {
	Root string
}

func (l DirLoader) Load(ctx context.Context, key string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// keys are relative paths; never let them escape Root
	path := filepath.Join(l.Root, filepath.Clean("/"+key))
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTable(key, f)
}

// Store caches light curve tables for the life of the process. Each key is
// loaded at most once, even under concurrent first requests; loads of
// different keys do not wait on each other. Failed loads are not cached.
type Store struct {
	loader Loader
	group  singleflight.Group
	loads  atomic.Int64

	mu     sync.RWMutex
	tables map[string]*Table
}

// NewStore creates an empty store backed by loader
func NewStore(loader Loader) *Store {
	return &Store{
		loader: loader,
		tables: make(map[string]*Table),
	}
}

// Get returns the table for key, loading it on first use.
func (s *Store) Get(ctx context.Context, key string) (*Table, error) {
	if t := s.cached(key); t != nil {
		return t, nil
	}
	// the load is shared, so it must not end with the caller that started it
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		// a load that finished between the miss above and DoChan is already cached
		if t := s.cached(key); t != nil {
			return t, nil
		}
		s.loads.Add(1)
		t, err := s.loader.Load(loadCtx, key)
		if err != nil {
			if errors.Is(err, ErrNoData) || errors.Is(err, fs.ErrNotExist) {
				return nil, &LightCurveNotFoundError{Key: key, Err: err}
			}
			return nil, fmt.Errorf("loading light curve %s: %w", key, err)
		}
		s.mu.Lock()
		s.tables[key] = t
		s.mu.Unlock()
		return t, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Table), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for light curve %s: %w", key, ctx.Err())
	}
}

// Preload installs a table under its key unless one is already cached.
func (s *Store) Preload(t *Table) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[t.Key]; ok {
		return false
	}
	s.tables[t.Key] = t
	return true
}

func (s *Store) cached(key string) *Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[key]
}

// Loads returns how many loader calls the store has made
func (s *Store) Loads() int64 { return s.loads.Load() }

// Len returns the number of cached tables
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}
