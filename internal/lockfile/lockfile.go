// Package lockfile provides the exclusive, scoped lock on the ledger storage
// root. Acquisition is fail-fast: if the lock is already held the caller gets
// ErrLedgerBusy immediately, never a queue. Every multi-step store operation
// acquires the lock and releases it on all exit paths.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// LockFileName is the lock file created under the storage root.
const LockFileName = "ledger.lock"

// Release removes the lock. Safe to call more than once.
type Release func()

// Acquire takes the exclusive lock on the given storage root. The lock file
// is created with O_EXCL so two invocations can never both hold it. Returns
// ErrStoreNotInitialized when the root is absent and ErrLedgerBusy when the
// lock is already held.
func Acquire(root string) (Release, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", types.ErrStoreNotInitialized, root)
		}
		return nil, fmt.Errorf("stat store root %s: %w", root, err)
	}

	path := filepath.Join(root, LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: lock held at %s", types.ErrLedgerBusy, path)
		}
		return nil, fmt.Errorf("create lock file %s: %w", path, err)
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		os.Remove(path)
	}, nil
}
