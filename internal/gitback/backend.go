// Package gitback adapts a local Git repository as the version-control
// backend the ledger records state against. The backend owns commits, trees,
// and tags; the ledger only reads them, and rollback asks this adapter to
// move the integration branch. Built on go-git, so no git binary is needed.
package gitback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/mesh-intelligence/greenledger/internal/codec"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// Repo wraps one opened Git repository.
type Repo struct {
	path string
	repo *gogit.Repository
}

// Open opens the Git repository at path.
func Open(path string) (*Repo, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open git repository at %s: %w", path, err)
	}
	return &Repo{path: path, repo: repo}, nil
}

// Head returns the commit the repository currently points at.
func (r *Repo) Head() (types.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return types.Commit{}, fmt.Errorf("resolve HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return types.Commit{}, fmt.Errorf("load HEAD commit %s: %w", ref.Hash(), err)
	}
	return types.Commit{SHA: commit.Hash.String(), Timestamp: commit.Committer.When}, nil
}

// Resolve expands a revision (full sha, short sha, tag, branch) to the full
// commit sha.
func (r *Repo) Resolve(rev string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("resolve revision %q: %w", rev, err)
	}
	return hash.String(), nil
}

// Message returns the full commit message for a sha.
func (r *Repo) Message(sha string) (string, error) {
	commit, err := r.commitFor(sha)
	if err != nil {
		return "", err
	}
	return commit.Message, nil
}

// ReportedPatchBlock parses the PatchBlock record out of the commit message
// for a sha. This is the record the backend currently reports; archives are
// verified against it.
func (r *Repo) ReportedPatchBlock(sha string) (types.PatchBlock, error) {
	message, err := r.Message(sha)
	if err != nil {
		return types.PatchBlock{}, err
	}
	_, pb, err := codec.ParseMessage(message)
	if err != nil {
		return types.PatchBlock{}, fmt.Errorf("commit %s: %w", sha, err)
	}
	return pb, nil
}

// TreeSnapshot reads the full tree recorded for a commit.
func (r *Repo) TreeSnapshot(sha string) (types.Tree, error) {
	commit, err := r.commitFor(sha)
	if err != nil {
		return nil, err
	}
	gitTree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree for %s: %w", sha, err)
	}

	tree := types.Tree{}
	err = gitTree.Files().ForEach(func(f *object.File) error {
		contents, err := f.Contents()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		tree[f.Name] = []byte(contents)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk tree for %s: %w", sha, err)
	}
	return tree, nil
}

// WorkingTreeClean reports whether the working tree has no local changes.
// Paths under any ignore prefix (the ledger's own storage root, typically)
// do not count.
func (r *Repo) WorkingTreeClean(ignore ...string) (bool, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return false, fmt.Errorf("working tree status: %w", err)
	}
	for path, st := range status {
		if st.Worktree == gogit.Unmodified && st.Staging == gogit.Unmodified {
			continue
		}
		ignored := false
		for _, prefix := range ignore {
			if prefix != "" && strings.HasPrefix(path, prefix) {
				ignored = true
				break
			}
		}
		if !ignored {
			return false, nil
		}
	}
	return true, nil
}

// MergeRestore creates a new commit on the current branch whose tree equals
// the given tree, with the current HEAD and the target commit as parents.
// Forward history is preserved. Returns the new commit sha.
func (r *Repo) MergeRestore(sha string, tree types.Tree, message string) (string, error) {
	targetHash, err := r.hashFor(sha)
	if err != nil {
		return "", err
	}
	headRef, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}

	headTree, err := r.TreeSnapshot(headRef.Hash().String())
	if err != nil {
		return "", err
	}

	// Drop files the target tree no longer has, then write the target
	// content over the worktree.
	for path := range headTree {
		if _, ok := tree[path]; !ok {
			if _, err := w.Remove(path); err != nil {
				return "", fmt.Errorf("remove %s: %w", path, err)
			}
		}
	}
	for _, path := range tree.Paths() {
		full := filepath.Join(r.path, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", fmt.Errorf("restore %s: %w", path, err)
		}
		if err := os.WriteFile(full, tree[path], 0o644); err != nil {
			return "", fmt.Errorf("restore %s: %w", path, err)
		}
		if _, err := w.Add(path); err != nil {
			return "", fmt.Errorf("stage %s: %w", path, err)
		}
	}

	commitHash, err := w.Commit(message, &gogit.CommitOptions{
		Author:            signature(),
		Committer:         signature(),
		Parents:           []plumbing.Hash{headRef.Hash(), targetHash},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("merge-restore commit for %s: %w", sha, err)
	}
	return commitHash.String(), nil
}

// ResetHard moves the current branch pointer directly to the target commit,
// discarding intervening history. Destructive; callers gate it behind an
// explicit confirmation flag.
func (r *Repo) ResetHard(sha string) error {
	hash, err := r.hashFor(sha)
	if err != nil {
		return err
	}
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := w.Reset(&gogit.ResetOptions{Commit: hash, Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("reset to %s: %w", sha, err)
	}
	return nil
}

// CreateTag creates an annotated tag in the backend. The backend tag mirrors
// the ledger's own index entry; the index remains authoritative for
// resolution.
func (r *Repo) CreateTag(name, sha, message string) error {
	hash, err := r.hashFor(sha)
	if err != nil {
		return err
	}
	_, err = r.repo.CreateTag(name, hash, &gogit.CreateTagOptions{
		Tagger:  signature(),
		Message: message,
	})
	if err != nil {
		return fmt.Errorf("create tag %s at %s: %w", name, sha, err)
	}
	return nil
}

func (r *Repo) commitFor(sha string) (*object.Commit, error) {
	hash, err := r.hashFor(sha)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", sha, err)
	}
	return commit, nil
}

func (r *Repo) hashFor(sha string) (plumbing.Hash, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(sha))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve commit %q: %w", sha, err)
	}
	return *hash, nil
}

func signature() *object.Signature {
	return &object.Signature{
		Name:  "greenledger",
		Email: "greenledger@localhost",
		When:  time.Now(),
	}
}
