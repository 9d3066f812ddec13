package gitback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// fixtureRepo creates a repository with one conformant commit and returns
// the repo wrapper and the commit sha.
func fixtureRepo(t *testing.T) (*Repo, string) {
	t.Helper()
	dir := t.TempDir()
	raw, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: "refs/heads/main"},
	})
	require.NoError(t, err)

	sha := commitFiles(t, raw, dir, map[string]string{
		"main.go":     "package main\n",
		"lib/util.go": "package lib\n",
	}, "feat(mARCH): PL-1 builder core\n\npatch_id: PB-20250812-1234\nstatus: accepted\ncontraintes: none\nnotes: init\ncommit_source: agent")

	repo, err := Open(dir)
	require.NoError(t, err)
	return repo, sha
}

func commitFiles(t *testing.T, raw *gogit.Repository, dir string, files map[string]string, message string) string {
	t.Helper()
	w, err := raw.Worktree()
	require.NoError(t, err)
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err = w.Add(path)
		require.NoError(t, err)
	}
	hash, err := w.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestHeadAndResolve(t *testing.T) {
	repo, sha := fixtureRepo(t)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, sha, head.SHA)

	// Short sha resolves to the full hash.
	full, err := repo.Resolve(sha[:7])
	require.NoError(t, err)
	assert.Equal(t, sha, full)

	_, err = repo.Resolve("doesnotexist")
	assert.Error(t, err)
}

func TestReportedPatchBlock(t *testing.T) {
	repo, sha := fixtureRepo(t)

	pb, err := repo.ReportedPatchBlock(sha)
	require.NoError(t, err)
	assert.Equal(t, "PB-20250812-1234", pb.PatchID)
	assert.Equal(t, types.StatusAccepted, pb.Status)
	assert.Equal(t, types.SourceAgent, pb.Source)
}

func TestTreeSnapshot(t *testing.T) {
	repo, sha := fixtureRepo(t)

	tree, err := repo.TreeSnapshot(sha)
	require.NoError(t, err)
	assert.Equal(t, types.Tree{
		"main.go":     []byte("package main\n"),
		"lib/util.go": []byte("package lib\n"),
	}, tree)
}

func TestWorkingTreeClean(t *testing.T) {
	repo, _ := fixtureRepo(t)

	clean, err := repo.WorkingTreeClean()
	require.NoError(t, err)
	assert.True(t, clean)

	require.NoError(t, os.WriteFile(filepath.Join(repo.path, "scratch.txt"), []byte("x"), 0o644))

	clean, err = repo.WorkingTreeClean()
	require.NoError(t, err)
	assert.False(t, clean)

	// The ledger's own storage root does not count as dirt.
	clean, err = repo.WorkingTreeClean("scratch.txt")
	require.NoError(t, err)
	assert.True(t, clean)
}

func TestMergeRestorePreservesHistory(t *testing.T) {
	repo, greenSHA := fixtureRepo(t)
	greenTree, err := repo.TreeSnapshot(greenSHA)
	require.NoError(t, err)

	// A later commit changes the tree.
	commitFiles(t, repo.repo, repo.path, map[string]string{
		"main.go": "package main // broken\n",
	}, "fix(mARCH): PL-2 fixer core\n\npatch_id: PB-20250813-0001\nstatus: partial\ncommit_source: agent")

	newSHA, err := repo.MergeRestore(greenSHA, greenTree,
		"fix(mARCH): PL-2 rollback core\n\npatch_id: RB-20250813-AAAA\nstatus: accepted\ncommit_source: rollback-fix")
	require.NoError(t, err)

	// The restored HEAD tree equals the green tree.
	restored, err := repo.TreeSnapshot(newSHA)
	require.NoError(t, err)
	assert.True(t, greenTree.Equal(restored))

	// Both the broken commit and the target are parents: history is kept.
	commit, err := repo.commitFor(newSHA)
	require.NoError(t, err)
	assert.Len(t, commit.ParentHashes, 2)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, newSHA, head.SHA)
}

func TestResetHardDiscardsHistory(t *testing.T) {
	repo, greenSHA := fixtureRepo(t)

	commitFiles(t, repo.repo, repo.path, map[string]string{
		"main.go": "package main // broken\n",
	}, "fix(mARCH): PL-2 fixer core\n\npatch_id: PB-20250813-0001\nstatus: partial\ncommit_source: agent")

	require.NoError(t, repo.ResetHard(greenSHA))

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, greenSHA, head.SHA)

	content, err := os.ReadFile(filepath.Join(repo.path, "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(content))
}

func TestCreateTag(t *testing.T) {
	repo, sha := fixtureRepo(t)

	require.NoError(t, repo.CreateTag("green-20250812-"+sha[:7], sha, "green build"))

	resolved, err := repo.Resolve("green-20250812-" + sha[:7])
	require.NoError(t, err)
	assert.Equal(t, sha, resolved)

	// Tags are write-once in the backend too.
	err = repo.CreateTag("green-20250812-"+sha[:7], sha, "green build")
	assert.Error(t, err)
}
