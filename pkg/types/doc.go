// Package types defines the ledger entities (PatchBlock, GreenTag,
// CheckReport, Tree), their closed enumerations, the storage Config, and the
// sentinel errors shared by every store.
// See docs/COMMITS.md and docs/ROLLBACK.md for the conventions these types
// formalize.
package types
