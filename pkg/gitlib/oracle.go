package gitlib

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/issuetrend/pkg/blame"
)

// ErrOutsidePrefix is returned for files that do not live under the oracle prefix.
var ErrOutsidePrefix = errors.New("file outside repository prefix")

// BlameOracle answers blame queries from a local git repository. Each query
// opens its own repository handle, so queries may run concurrently.
type BlameOracle struct {
	RepoPath string
	// Prefix is stripped from issue paths before blaming. It supports builds
	// whose workspace root is a parent of the repository root.
	Prefix string
}

// Blame implements blame.Oracle.
func (o BlameOracle) Blame(ctx context.Context, file string, lines []int) (map[int]blame.Info, error) {
	rel, err := o.relative(file)
	if err != nil {
		return nil, err
	}

	repo, err := OpenRepository(o.RepoPath)
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	blamed, err := repo.Blame(ctx, rel, lines)
	if err != nil {
		return nil, err
	}

	out := make(map[int]blame.Info, len(blamed))
	for line, bl := range blamed {
		out[line] = blame.Info{
			Author:   bl.Author.Name,
			Email:    bl.Author.Email,
			CommitID: bl.Commit.String(),
		}
	}

	return out, nil
}

func (o BlameOracle) relative(file string) (string, error) {
	prefix := strings.Trim(o.Prefix, "/")
	if prefix == "" {
		return file, nil
	}

	rel, ok := strings.CutPrefix(file, prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s not under %s", ErrOutsidePrefix, file, prefix)
	}

	return rel, nil
}
