package redisstore

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
)

// fakeClient is an in-memory stand-in for the commands the store issues.
type fakeClient struct {
	mu      sync.Mutex
	strings map[string][]byte
	zsets   map[string]map[string]float64
	failSet error
}

func newFakeClient() *fakeClient {
	return &fakeClient{strings: map[string][]byte{}, zsets: map[string]map[string]float64{}}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}

	return redis.NewStringResult(string(v), nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSet != nil {
		return redis.NewStatusResult("", f.failSet)
	}

	f.strings[key] = append([]byte(nil), value.([]byte)...)

	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.zsets[key]
	if !ok {
		set = map[string]float64{}
		f.zsets[key] = set
	}

	for _, m := range members {
		set[m.Member.(string)] = m.Score
	}

	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeClient) ZRange(_ context.Context, key string, _, _ int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.zsets[key]
	members := make([]string, 0, len(set))

	for m := range set {
		members = append(members, m)
	}

	sort.Slice(members, func(a, b int) bool { return set[members[a]] < set[members[b]] })

	return redis.NewStringSliceResult(members, nil)
}

func result(id build.ID) *build.Result {
	return &build.Result{
		BuildID:     id,
		Outcome:     build.OutcomeSuccess,
		Timestamp:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Issues:      []issue.Issue{{File: "a.go", LineStart: 4, LineEnd: 4, Severity: issue.SeverityNormal, Fingerprint: "f", Occurrences: 1}},
		New:         []issue.Fingerprint{"f"},
		Outstanding: []issue.Fingerprint{},
		Fixed:       []issue.Issue{},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	store := New(client, "ci")
	ctx := context.Background()

	for _, id := range []build.ID{12, 3, 100} {
		require.NoError(t, store.Save(ctx, result(id)))
	}

	assert.Contains(t, client.strings, "ci:build:12")
	assert.Contains(t, client.zsets, "ci:builds")

	got, err := store.Load(ctx, 12)
	require.NoError(t, err)
	assert.Equal(t, result(12), got)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []build.ID{3, 12, 100}, ids)

	_, err = store.Load(ctx, 4)
	require.ErrorIs(t, err, history.ErrNotFound)

	require.NoError(t, store.Close())
}

func TestStore_Failures(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	store := New(client, "")
	ctx := context.Background()

	client.strings[DefaultPrefix+":build:1"] = []byte(`{"build_id":1,"new":["ghost"]}`)
	_, err := store.Load(ctx, 1)
	require.ErrorIs(t, err, history.ErrCorrupt)

	client.zsets[DefaultPrefix+":builds"] = map[string]float64{"x": 1}
	_, err = store.IDs(ctx)
	require.ErrorIs(t, err, history.ErrCorrupt)

	errDown := errors.New("connection refused")
	client.failSet = errDown
	require.ErrorIs(t, store.Save(ctx, result(2)), errDown)
	assert.NotContains(t, client.zsets[DefaultPrefix+":builds"], strconv.Itoa(2))
}
