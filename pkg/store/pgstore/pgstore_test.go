package pgstore_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/build"
	"github.com/Sumatoshi-tech/issuetrend/pkg/health"
	"github.com/Sumatoshi-tech/issuetrend/pkg/history"
	"github.com/Sumatoshi-tech/issuetrend/pkg/issue"
	"github.com/Sumatoshi-tech/issuetrend/pkg/store/pgstore"
)

// fakeDB emulates the handful of statements the store issues.
type fakeDB struct {
	mu       sync.Mutex
	payloads map[int64][]byte
	statuses map[int64]string
	queries  []string
}

func (db *fakeDB) Connect(context.Context) (driver.Conn, error) { return &fakeConn{db: db}, nil }
func (db *fakeDB) Driver() driver.Driver { return db }
func (db *fakeDB) Open(string) (driver.Conn, error) { return &fakeConn{db: db}, nil }

type fakeConn struct{ db *fakeDB }

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{db: c.db, query: query}, nil
}
func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

type fakeStmt struct {
	db    *fakeDB
	query string
}

func (s *fakeStmt) Close() error { return nil }
func (s *fakeStmt) NumInput() int { return -1 }

func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.queries = append(s.db.queries, s.query)

	if strings.Contains(s.query, "INSERT INTO") {
		id := args[0].(int64)
		s.db.statuses[id] = args[1].(string)
		s.db.payloads[id] = append([]byte(nil), args[3].([]byte)...)
	}

	return driver.RowsAffected(1), nil
}

func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	s.db.queries = append(s.db.queries, s.query)

	switch {
	case strings.Contains(s.query, "SELECT payload"):
		payload, ok := s.db.payloads[args[0].(int64)]
		if !ok {
			return &fakeRows{cols: []string{"payload"}}, nil
		}

		return &fakeRows{cols: []string{"payload"}, values: [][]driver.Value{{payload}}}, nil
	case strings.Contains(s.query, "SELECT build_id"):
		ids := make([]int64, 0, len(s.db.payloads))
		for id := range s.db.payloads {
			ids = append(ids, id)
		}

		slices.Sort(ids)

		rows := &fakeRows{cols: []string{"build_id"}}
		for _, id := range ids {
			rows.values = append(rows.values, []driver.Value{id})
		}

		return rows, nil
	default:
		return nil, errors.New("unexpected query: " + s.query)
	}
}

type fakeRows struct {
	cols   []string
	values [][]driver.Value
	pos    int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}

	copy(dest, r.values[r.pos])
	r.pos++

	return nil
}

func newStore(t *testing.T) (*pgstore.Store, *fakeDB) {
	t.Helper()

	fake := &fakeDB{payloads: map[int64][]byte{}, statuses: map[int64]string{}}
	store := pgstore.New(sql.OpenDB(fake), "")

	t.Cleanup(func() { _ = store.Close() })

	return store, fake
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
		Status:      health.StatusUnstable,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store, fake := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))

	for _, id := range []build.ID{7, 2, 5} {
		require.NoError(t, store.Save(ctx, result(id)))
	}

	require.NoError(t, store.Save(ctx, result(7)))

	assert.Contains(t, fake.queries[0], `CREATE TABLE IF NOT EXISTS "build_results"`)
	assert.Contains(t, fake.queries[1], "ON CONFLICT (build_id)")
	assert.Equal(t, "UNSTABLE", fake.statuses[7])

	got, err := store.Load(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, result(5), got)

	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []build.ID{2, 5, 7}, ids)

	_, err = store.Load(ctx, 1)
	require.ErrorIs(t, err, history.ErrNotFound)
}

func TestStore_CorruptPayload(t *testing.T) {
	t.Parallel()

	store, fake := newStore(t)
	fake.payloads[3] = []byte(`{"build_id":4}`)
	fake.payloads[4] = []byte(`not json`)

	_, err := store.Load(context.Background(), 3)
	require.ErrorIs(t, err, history.ErrCorrupt)

	_, err = store.Load(context.Background(), 4)
	require.ErrorIs(t, err, history.ErrCorrupt)
}
