package filestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/filestore"
)

func result(id build.ID) *build.Result {
	return &build.Result{
		BuildID:     id,
		Outcome:     build.OutcomeSuccess,
		Timestamp:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Issues:      []issue.Issue{{File: "a.go", LineStart: 1, LineEnd: 1, Severity: issue.SeverityHigh, Fingerprint: "f", Occurrences: 1}},
		New:         []issue.Fingerprint{"f"},
		Outstanding: []issue.Fingerprint{},
		Fixed:       []issue.Issue{},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		fs := afero.NewMemMapFs()
		store := filestore.New(fs, "results", compress)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, result(10)))
		require.NoError(t, store.Save(ctx, result(2)))
		require.NoError(t, afero.WriteFile(fs, "results/README.json", []byte("{}"), 0o644))

		got, err := store.Load(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, result(10), got)

		ids, err := store.IDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []build.ID{2, 10}, ids)

		_, err = store.Load(ctx, 3)
		require.ErrorIs(t, err, history.ErrNotFound)

		latest, ok, err := history.Latest(ctx, store, 10)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, build.ID(2), latest)
	}
}

func TestStore_FileNames(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()

	require.NoError(t, filestore.New(fs, "plain", false).Save(context.Background(), result(1)))
	require.NoError(t, filestore.New(fs, "packed", true).Save(context.Background(), result(1)))

	for _, path := range []string{"plain/build-1.json", "packed/build-1.json.lz4"} {
		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}
}

func TestStore_CorruptRecords(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := filestore.New(fs, "results", false)

	require.NoError(t, afero.WriteFile(fs, "results/build-1.json", []byte("{not json"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "results/build-2.json", []byte(`{"build_id":2,"issues":[{"file":"a.go","severity":"LOW","fingerprint":"x"}]}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "results/build-3.json", []byte(`{"build_id":7}`), 0o644))

	for _, id := range []build.ID{1, 2, 3} {
		_, err := store.Load(context.Background(), id)
		require.ErrorIs(t, err, history.ErrCorrupt, "build %d", id)
	}
}
