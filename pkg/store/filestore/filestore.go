// Package filestore keeps build results as one file per build in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/persist"
)

const namePrefix = "build-"

// Store is a history.Store over a directory. Records are named
// build-<id>.json, or build-<id>.json.lz4 when compressed.
type Store struct {
	// mu serializes writers; the rename in Save keeps readers safe.
	mu        sync.Mutex
	persister *persist.Persister[build.Result]
}

// New creates a store in dir on fs.
func New(fs afero.Fs, dir string, compress bool) *Store {
	var codec persist.Codec = persist.NewJSONCodec()
	if compress {
		codec = persist.NewLZ4Codec(&persist.JSONCodec{})
	}

	return &Store{persister: persist.NewPersister[build.Result](fs, dir, codec)}
}

func name(id build.ID) string {
	return namePrefix + strconv.FormatInt(id, 10)
}

// Save implements history.Store.
func (s *Store) Save(ctx context.Context, result *build.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persister.Save(name(result.BuildID), result)
}

// Load implements history.Loader.
func (s *Store) Load(ctx context.Context, id build.ID) (*build.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := s.persister.Load(name(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", history.ErrNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: build %d: %w", history.ErrCorrupt, id, err)
	}

	if err := history.Verify(id, r); err != nil {
		return nil, err
	}

	return r, nil
}

// IDs implements history.Store. Files that do not follow the naming scheme are ignored.
func (s *Store) IDs(ctx context.Context) ([]build.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := s.persister.Names()
	if err != nil {
		return nil, err
	}

	ids := make([]build.ID, 0, len(names))

	for _, n := range names {
		raw, ok := strings.CutPrefix(n, namePrefix)
		if !ok {
			continue
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			continue
		}

		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids, nil
}

// Close implements io.Closer.
func (s *Store) Close() error { return nil }
