package gitlib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/issuetrend/pkg/blame"
	"github.com/Sumatoshi-tech/issuetrend/pkg/gitlib"
)

// testRepo wraps a temporary repository for blame tests.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo}
}

func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()

	path := filepath.Join(tr.path, name)
	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

// commit stages all files and commits them as author.
func (tr *testRepo) commit(author, email, message string) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: author, Email: email, When: time.Now()}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		parent, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, parent)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

func TestBlameOracle(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)

	tr.writeFile("pkg/a.go", "one\ntwo\nthree\n")
	first := tr.commit("Alice", "alice@example.com", "initial")

	tr.writeFile("pkg/a.go", "one\ntwo\nthree\nfour\nfive\n")
	second := tr.commit("Bob", "bob@example.com", "extend")

	oracle := gitlib.BlameOracle{RepoPath: tr.path}

	got, err := oracle.Blame(context.Background(), "pkg/a.go", []int{2, 4, 99})
	require.NoError(t, err)

	assert.Equal(t, map[int]blame.Info{
		2: {Author: "Alice", Email: "alice@example.com", CommitID: first.String()},
		4: {Author: "Bob", Email: "bob@example.com", CommitID: second.String()},
	}, got)
}

func TestBlameOracle_Prefix(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("main.c", "int main() {}\n")
	tr.commit("Carol", "carol@example.com", "initial")

	oracle := gitlib.BlameOracle{RepoPath: tr.path, Prefix: "src/"}

	got, err := oracle.Blame(context.Background(), "src/main.c", []int{1})
	require.NoError(t, err)
	assert.Equal(t, "Carol", got[1].Author)

	_, err = oracle.Blame(context.Background(), "lib/util.c", []int{1})
	require.ErrorIs(t, err, gitlib.ErrOutsidePrefix)
}

func TestBlameOracle_Failures(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "x\n")
	tr.commit("Alice", "alice@example.com", "initial")

	_, err := gitlib.BlameOracle{RepoPath: tr.path}.Blame(context.Background(), "untracked.txt", []int{1})
	require.Error(t, err)

	_, err = gitlib.BlameOracle{RepoPath: filepath.Join(tr.path, "missing")}.Blame(context.Background(), "a.txt", []int{1})
	require.Error(t, err)

	_, err = gitlib.OpenRepository("https://example.com/repo.git")
	require.ErrorIs(t, err, gitlib.ErrRemoteNotSupported)
}

func TestRepository_Head(t *testing.T) {
	t.Parallel()

	tr := newTestRepo(t)
	tr.writeFile("a.txt", "x\n")
	want := tr.commit("Alice", "alice@example.com", "initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, want, head)
	assert.False(t, head.IsZero())
	assert.Len(t, head.String(), 2*gitlib.HashSize)
	assert.Equal(t, tr.path, repo.Path())
}
