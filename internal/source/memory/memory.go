// Package memory is an in-process workbook source for tests. It records load
// calls and can be told to fail a location.
package memory

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"tracker/internal/core"
	"tracker/internal/source"
)

// Store serves workbooks registered under a location.
type Store struct {
	mu        sync.Mutex
	workbooks map[string]core.Workbook
	failures  map[string]error
	calls     map[string]int
}

var _ source.Loader = (*Store)(nil)

func New() *Store {
	return &Store{
		workbooks: make(map[string]core.Workbook),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

// Put registers wb under location and clears any injected failure.
func (s *Store) Put(location string, wb core.Workbook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workbooks[location] = wb
	delete(s.failures, location)
}

// Fail makes every load of location return err until the next Put.
func (s *Store) Fail(location string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[location] = err
}

// Calls returns how many loads of location were attempted.
func (s *Store) Calls(location string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[location]
}

func (s *Store) Load(ctx context.Context, location string) (core.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoadFailed, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[location]++
	if err, ok := s.failures[location]; ok {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoadFailed, location, err)
	}
	wb, ok := s.workbooks[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoadFailed, location, fs.ErrNotExist)
	}
	return wb, nil
}

func (s *Store) Describe() string {
	return "memory"
}
