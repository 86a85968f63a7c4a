package gitlib

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrRemoteNotSupported is returned when a remote repository URI is provided.
var ErrRemoteNotSupported = errors.New("remote repositories not supported")

var scpLikeURI = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)

// Repository wraps a libgit2 repository. It is not safe for concurrent use.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a local git repository at path.
func OpenRepository(path string) (*Repository, error) {
	if strings.Contains(path, "://") || scpLikeURI.MatchString(path) {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotSupported, path)
	}

	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points to.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// BlameLine is the last change of one line.
type BlameLine struct {
	Commit Hash
	Author Signature
}

// Blame returns the last change of each requested 1-based line of the file at
// path, relative to the repository root, as of HEAD. Lines outside the file
// are left out of the result.
func (r *Repository) Blame(ctx context.Context, path string, lines []int) (map[int]BlameLine, error) {
	out := make(map[int]BlameLine, len(lines))
	if len(lines) == 0 {
		return out, nil
	}

	opts, err := git2go.DefaultBlameOptions()
	if err != nil {
		return nil, fmt.Errorf("blame options: %w", err)
	}

	result, err := r.repo.BlameFile(path, &opts)
	if err != nil {
		return nil, fmt.Errorf("blame %s: %w", path, err)
	}
	defer result.Free()

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		hunk, err := result.HunkByLine(line)
		if err != nil {
			continue
		}

		out[line] = BlameLine{
			Commit: HashFromOid(hunk.FinalCommitId),
			Author: signatureFromNative(hunk.FinalSignature),
		}
	}

	return out, nil
}
