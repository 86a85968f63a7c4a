// Package history walks the chain of stored build results to find diff
// baselines and to assemble trend series.
package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
)

// Store errors.
var (
	// ErrNotFound is returned by loaders when no result is stored for an id.
	ErrNotFound = errors.New("build result not found")
	// ErrCorrupt is returned when a stored record fails verification.
	ErrCorrupt = errors.New("corrupt build record")
)

// Loader loads stored build results by id.
type Loader interface {
	Load(ctx context.Context, id build.ID) (*build.Result, error)
}

// Store persists build results. Records are self-contained and reference
// their predecessors by id only.
type Store interface {
	Loader
	Save(ctx context.Context, result *build.Result) error
	// IDs returns all stored ids in ascending order.
	IDs(ctx context.Context) ([]build.ID, error)
}

// Verify checks a record loaded for id. Persistent stores call it on every
// load so that a damaged record is reported instead of silently diffed against.
func Verify(id build.ID, r *build.Result) error {
	if r.BuildID != id {
		return fmt.Errorf("%w: record for build %d holds build %d", ErrCorrupt, id, r.BuildID)
	}

	if err := r.CheckInvariants(); err != nil {
		return fmt.Errorf("%w: build %d: %w", ErrCorrupt, id, err)
	}

	return nil
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id build.ID) (*build.Result, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, id build.ID) (*build.Result, error) {
	return f(ctx, id)
}

// Memory is an in-process Store. Saved results are shared, not copied, so
// callers must treat them as immutable.
type Memory struct {
	mu      sync.RWMutex
	results map[build.ID]*build.Result
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{results: make(map[build.ID]*build.Result)}
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, result *build.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[result.BuildID] = result

	return nil
}

// Load implements Loader.
func (m *Memory) Load(_ context.Context, id build.ID) (*build.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.results[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	return r, nil
}

// IDs implements Store.
func (m *Memory) IDs(_ context.Context) ([]build.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]build.ID, 0, len(m.results))
	for id := range m.results {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids, nil
}

// Latest returns the highest stored id strictly lower than before. A
// non-positive before returns the highest stored id.
func Latest(ctx context.Context, store Store, before build.ID) (build.ID, bool, error) {
	ids, err := store.IDs(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("list builds: %w", err)
	}

	for idx := len(ids) - 1; idx >= 0; idx-- {
		if before <= 0 || ids[idx] < before {
			return ids[idx], true, nil
		}
	}

	return 0, false, nil
}
