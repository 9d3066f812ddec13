package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mesh-intelligence/greenledger/internal/archive"
	"github.com/mesh-intelligence/greenledger/internal/codec"
	"github.com/mesh-intelligence/greenledger/internal/gitback"
	"github.com/mesh-intelligence/greenledger/internal/ledger"
	"github.com/mesh-intelligence/greenledger/internal/paths"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// workspace bundles the handles a subcommand operates on.
type workspace struct {
	RepoRoot string
	StoreDir string
	Archives *archive.Store
	Tags     *ledger.Ledger
	Backend  *gitback.Repo
}

// openWorkspace resolves the repository root and storage root, then opens the
// archive store, tag ledger, and git backend against them.
func openWorkspace() (*workspace, error) {
	repoRoot, err := paths.ResolveRepoRoot(flagRepoRoot)
	if err != nil {
		return nil, err
	}
	storeDir, err := resolveStoreDir(repoRoot)
	if err != nil {
		return nil, err
	}
	archives, err := archive.NewStore(storeDir)
	if err != nil {
		return nil, err
	}
	tags, err := ledger.New(storeDir, archives)
	if err != nil {
		return nil, err
	}
	backend, err := gitback.Open(repoRoot)
	if err != nil {
		return nil, err
	}
	return &workspace{
		RepoRoot: repoRoot,
		StoreDir: storeDir,
		Archives: archives,
		Tags:     tags,
		Backend:  backend,
	}, nil
}

// exitWith maps an error onto the CLI's exit-code taxonomy, prints it, and
// exits. Nil exits with success.
func exitWith(err error) {
	if err == nil {
		os.Exit(exitSuccess)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor classifies an error: lock contention, integrity failures, and
// preconditions each carry a distinct code so scripts can branch on them.
func exitCodeFor(err error) int {
	var parseErr *codec.ParseError
	switch {
	case errors.Is(err, types.ErrLedgerBusy):
		return exitLocked
	case errors.Is(err, types.ErrArchiveCorrupt),
		errors.Is(err, types.ErrMetadataMismatch),
		errors.Is(err, types.ErrArchiveConflict),
		errors.Is(err, types.ErrTreeDrift),
		errors.Is(err, types.ErrDuplicateIdentifier),
		errors.Is(err, types.ErrTagImmutable):
		return exitIntegrity
	case errors.Is(err, types.ErrStoreNotInitialized),
		errors.Is(err, types.ErrArchiveMissing),
		errors.Is(err, types.ErrTagNotFound),
		errors.Is(err, types.ErrNoGreenTags),
		errors.Is(err, types.ErrNoTarget),
		errors.Is(err, types.ErrNoReports),
		errors.Is(err, types.ErrDirtyWorkingTree),
		errors.As(err, &parseErr):
		return exitPrecondition
	default:
		return exitUserError
	}
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
