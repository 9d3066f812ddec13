package types

import "errors"

// Config holds the storage root and backend location for store attachment.
type Config struct {
	// StoreDir is the ledger storage root (archive/, reports/, tags.jsonl).
	StoreDir string `json:"store_dir" yaml:"store_dir"`

	// RepoRoot is the path of the Git repository the ledger records
	// state for.
	RepoRoot string `json:"repo_root" yaml:"repo_root"`

	// Branch is the integration branch rollback operates on.
	Branch string `json:"branch" yaml:"branch"`
}

// Config validation errors.
var (
	ErrStoreDirEmpty = errors.New("store_dir must not be empty")
	ErrRepoRootEmpty = errors.New("repo_root must not be empty")
)

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.StoreDir == "" {
		return ErrStoreDirEmpty
	}
	if c.RepoRoot == "" {
		return ErrRepoRootEmpty
	}
	return nil
}
