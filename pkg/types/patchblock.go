package types

import (
	"errors"
	"regexp"
)

// PatchBlock statuses. The outcome of one attempted change.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusPartial  = "partial"
)

// validStatuses is the closed set of recognized status values.
var validStatuses = map[string]bool{
	StatusAccepted: true,
	StatusRejected: true,
	StatusPartial:  true,
}

// Commit sources. Where the recorded commit came from.
const (
	SourceManual    = "manual"
	SourceAgent     = "agent"
	SourceMigration = "brownfield-migration"
	SourceRollback  = "rollback-fix"
)

// validSources is the closed set of recognized commit_source values.
var validSources = map[string]bool{
	SourceManual:    true,
	SourceAgent:     true,
	SourceMigration: true,
	SourceRollback:  true,
}

// Identifier grammars per docs/COMMITS.md.
var (
	// patchIDPattern matches PB-YYYYMMDD-NNNN for forward patches and
	// RB-YYYYMMDD-XXXX (uppercase hex) for rollback-origin patches.
	patchIDPattern = regexp.MustCompile(`^PB-\d{8}-\d{4}$|^RB-\d{8}-[0-9A-F]{4}$`)

	// planLineIDPattern matches plan line identifiers.
	planLineIDPattern = regexp.MustCompile(`^PL-\d+$`)
)

// Identifier and enumeration validation errors.
var (
	ErrInvalidPatchID    = errors.New("invalid patch_id")
	ErrInvalidPlanLineID = errors.New("invalid plan_line_id")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidSource     = errors.New("invalid commit_source")
)

// PatchBlock is one recorded attempt to realize a plan line, tied to exactly
// one commit. The commit history owns PatchBlock records; the ledger only
// reads and indexes them.
type PatchBlock struct {
	PatchID     string `json:"patch_id"`
	Status      string `json:"status"`
	Constraints string `json:"contraintes,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Source      string `json:"commit_source"`
}

// Validate checks identifiers and enumerations against their closed sets.
func (p PatchBlock) Validate() error {
	if !patchIDPattern.MatchString(p.PatchID) {
		return ErrInvalidPatchID
	}
	if !validStatuses[p.Status] {
		return ErrInvalidStatus
	}
	if !validSources[p.Source] {
		return ErrInvalidSource
	}
	return nil
}

// ValidPatchID reports whether id matches the patch identifier grammar.
func ValidPatchID(id string) bool {
	return patchIDPattern.MatchString(id)
}

// ValidPlanLineID reports whether id matches the plan line identifier grammar.
func ValidPlanLineID(id string) bool {
	return planLineIDPattern.MatchString(id)
}

// ValidStatus reports whether s is a recognized status value.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// ValidSource reports whether s is a recognized commit_source value.
func ValidSource(s string) bool {
	return validSources[s]
}
