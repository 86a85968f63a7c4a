package blame

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Oracle answers blame queries for one file. Implementations must be safe
// for concurrent use by Collect.
type Oracle interface {
	Blame(ctx context.Context, file string, lines []int) (map[int]Info, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, file string, lines []int) (map[int]Info, error)

// Blame implements Oracle.
func (f OracleFunc) Blame(ctx context.Context, file string, lines []int) (map[int]Info, error) {
	return f(ctx, file, lines)
}

// FileError records an oracle failure confined to one file.
type FileError struct {
	File string
	Err  error
}

// Error implements error.
func (e FileError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("blame: %v", e.Err)
	}

	return fmt.Sprintf("blame %s: %v", e.File, e.Err)
}

// Unwrap returns the oracle error.
func (e FileError) Unwrap() error {
	return e.Err
}

// Collect queries the oracle for every request with at most workers queries
// in flight. A failing file is reported in the returned errors and its issues
// stay unattributed; other files proceed. Only context cancellation stops the
// collection early, in which case the table holds what completed.
func Collect(ctx context.Context, oracle Oracle, requests []Request, workers int) (Table, []FileError) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu     sync.Mutex
		table  = make(Table, len(requests))
		failed []FileError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, req := range requests {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			lines, err := oracle.Blame(gctx, req.File, req.Lines)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				failed = append(failed, FileError{File: req.File, Err: err})

				return nil
			}

			if len(lines) > 0 {
				table[req.File] = lines
			}

			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		failed = append(failed, FileError{Err: err})
	}

	return table, failed
}
