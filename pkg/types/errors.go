package types

import "errors"

// State errors: the caller must fix the request or the environment before
// retrying.
var (
	// ErrStoreNotInitialized means the ledger storage root is absent.
	// The ledger never auto-creates it; bootstrap is a separate step.
	ErrStoreNotInitialized = errors.New("ledger store not initialized")

	// ErrTagImmutable means a green tag name was re-recorded with a
	// different sha. Tags are write-once.
	ErrTagImmutable = errors.New("green tag is immutable")

	// ErrTagNotFound means the named green tag is not in the ledger.
	ErrTagNotFound = errors.New("green tag not found")

	// ErrNoGreenTags means the ledger holds no green tags at all.
	ErrNoGreenTags = errors.New("no green tags recorded")

	// ErrNoTarget means rollback target resolution failed.
	ErrNoTarget = errors.New("no rollback target")

	// ErrNoReports means no check report exists for the plan line.
	ErrNoReports = errors.New("no check reports recorded")

	// ErrDirtyWorkingTree means the backend working tree has local
	// modifications and rollback refuses to proceed.
	ErrDirtyWorkingTree = errors.New("working tree is not clean")
)

// Integrity errors: never auto-repaired, always abort the current operation.
var (
	// ErrArchiveMissing means no archive exists for the commit.
	ErrArchiveMissing = errors.New("archive missing")

	// ErrArchiveCorrupt means the archive checksum does not match its
	// recorded value.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrMetadataMismatch means the archive's embedded metadata differs
	// from what the backend currently reports for the commit.
	ErrMetadataMismatch = errors.New("archive metadata mismatch")

	// ErrArchiveConflict means re-archival of the same sha would produce
	// different content than the existing archive.
	ErrArchiveConflict = errors.New("archive already exists with different content")

	// ErrTreeDrift means the extracted archive tree no longer matches the
	// backend's recorded tree for the commit.
	ErrTreeDrift = errors.New("archive tree drifted from backend tree")

	// ErrDuplicateIdentifier means a patch_id was already archived for a
	// different commit.
	ErrDuplicateIdentifier = errors.New("duplicate patch identifier")
)

// Store lifecycle errors.
var (
	// ErrStoreDetached means an operation was attempted on a detached
	// store.
	ErrStoreDetached = errors.New("store is detached")

	// ErrAlreadyAttached means Attach was called on an attached store.
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Concurrency errors: recoverable by retrying later.
var (
	// ErrLedgerBusy means the storage-root lock is held by another
	// invocation. Acquisition fails fast; there is no queueing.
	ErrLedgerBusy = errors.New("ledger is busy")
)
