// Package rollback implements the rollback orchestrator: an explicit state
// machine, one instance per invocation, that resolves a green target,
// verifies its archive, restores the tree via a merge or reset strategy, and
// optionally records a fresh green tag when an external verification run
// reports success. Each step is an independently invocable checkpoint; any
// failure before Restoring leaves the backend untouched because extraction
// always goes to scratch space first.
package rollback

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mesh-intelligence/greenledger/internal/archive"
	"github.com/mesh-intelligence/greenledger/internal/codec"
	"github.com/mesh-intelligence/greenledger/internal/ledger"
	"github.com/mesh-intelligence/greenledger/internal/lockfile"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// Backend is the version-control surface rollback needs. gitback.Repo
// satisfies it; tests substitute fakes.
type Backend interface {
	Head() (types.Commit, error)
	ReportedPatchBlock(sha string) (types.PatchBlock, error)
	TreeSnapshot(sha string) (types.Tree, error)
	WorkingTreeClean(ignore ...string) (bool, error)
	MergeRestore(sha string, tree types.Tree, message string) (string, error)
	ResetHard(sha string) error
}

// Strategy selects how the integration branch reaches the target tree.
type Strategy string

// Restore strategies.
const (
	// StrategyMerge produces a new commit whose tree equals the target
	// archive's tree, preserving forward history.
	StrategyMerge Strategy = "merge"

	// StrategyReset moves the branch pointer directly to the target,
	// discarding intervening history. Requires explicit confirmation.
	StrategyReset Strategy = "reset"
)

// State names the orchestrator's position in the rollback lifecycle.
type State string

// Lifecycle states.
const (
	StateIdle      State = "Idle"
	StateResolving State = "Resolving"
	StateVerifying State = "Verifying"
	StateRestoring State = "Restoring"
	StateRetagging State = "Retagging"
	StateDone      State = "Done"
	StateFailed    State = "Failed"
)

// Reason classifies a terminal failure.
type Reason string

// Failure reasons.
const (
	ReasonNone             Reason = ""
	ReasonNoTarget         Reason = "NoTarget"
	ReasonArchiveInvalid   Reason = "ArchiveInvalid"
	ReasonTreeDrift        Reason = "TreeDrift"
	ReasonDirtyWorkingTree Reason = "DirtyWorkingTree"
	ReasonLedgerBusy       Reason = "LedgerBusy"
	ReasonRestoreFailed    Reason = "RestoreFailed"
	ReasonRetagFailed      Reason = "RetagFailed"
)

// TargetLatest selects the newest green tag as the rollback target.
const TargetLatest = "latest"

// Options configure one rollback invocation.
type Options struct {
	// Target is an explicit green tag name, or TargetLatest.
	Target string

	// Strategy is merge (default) or reset.
	Strategy Strategy

	// Force skips the clean working tree check and confirms the
	// destructive reset strategy.
	Force bool

	// IgnorePaths are working-tree path prefixes excluded from the clean
	// check, typically the ledger's own storage root.
	IgnorePaths []string
}

// VerifyHook reports whether an external verification run succeeded for the
// restored head. The orchestrator never fabricates a green status itself.
type VerifyHook func(sha string) (bool, error)

// Orchestrator drives one rollback. Never shared between invocations.
type Orchestrator struct {
	archives *archive.Store
	tags     *ledger.Ledger
	backend  Backend
	opts     Options

	state    State
	reason   Reason
	target   types.GreenTag
	reported types.PatchBlock
	subject  codec.Subject
	restored string
	newTag   types.GreenTag
}

// New builds an orchestrator in the Idle state.
func New(archives *archive.Store, tags *ledger.Ledger, backend Backend, opts Options) *Orchestrator {
	if opts.Strategy == "" {
		opts.Strategy = StrategyMerge
	}
	if opts.Target == "" {
		opts.Target = TargetLatest
	}
	return &Orchestrator{
		archives: archives,
		tags:     tags,
		backend:  backend,
		opts:     opts,
		state:    StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State { return o.state }

// FailureReason returns the terminal failure classification, if any.
func (o *Orchestrator) FailureReason() Reason { return o.reason }

// Target returns the resolved green tag. Valid after Resolve.
func (o *Orchestrator) Target() types.GreenTag { return o.target }

// RestoredSHA returns the head commit after a successful restore.
func (o *Orchestrator) RestoredSHA() string { return o.restored }

// NewTag returns the tag recorded during Retagging, if one was.
func (o *Orchestrator) NewTag() types.GreenTag { return o.newTag }

// Resolve determines the target green tag, either the explicit name or the
// newest tag under the ledger's total order.
func (o *Orchestrator) Resolve() error {
	if err := o.require(StateIdle, "Resolve"); err != nil {
		return err
	}
	o.state = StateResolving

	var (
		tag types.GreenTag
		err error
	)
	if o.opts.Target == TargetLatest {
		tag, err = o.tags.ResolveLatest()
	} else {
		tag, err = o.tags.Resolve(o.opts.Target)
	}
	if err != nil {
		return o.fail(ReasonNoTarget, fmt.Errorf("%w: %w", types.ErrNoTarget, err))
	}
	o.target = tag
	return nil
}

// Verify checks the target's archive against the PatchBlock the backend
// currently reports. Rollback never proceeds against an unverified archive.
func (o *Orchestrator) Verify() error {
	if err := o.require(StateResolving, "Verify"); err != nil {
		return err
	}
	o.state = StateVerifying

	message, reported, err := o.reportedFor(o.target.SHA)
	if err != nil {
		return o.fail(ReasonArchiveInvalid, err)
	}
	o.subject = message
	o.reported = reported

	if status, err := o.archives.Verify(o.target.SHA, reported); status != archive.VerifyOk {
		return o.fail(ReasonArchiveInvalid,
			fmt.Errorf("archive for tag %s (sha %s) is %s: %w", o.target.Name, o.target.SHA, status, err))
	}
	return nil
}

// Restore extracts the archive to scratch space, re-checks it against the
// backend's recorded tree, and applies the selected strategy. A drift found
// here aborts before any branch mutation. The storage-root lock is held for
// the duration.
func (o *Orchestrator) Restore() error {
	if err := o.require(StateVerifying, "Restore"); err != nil {
		return err
	}

	release, err := lockfile.Acquire(o.archives.Root())
	if err != nil {
		if errors.Is(err, types.ErrLedgerBusy) {
			return o.fail(ReasonLedgerBusy, err)
		}
		return o.fail(ReasonRestoreFailed, err)
	}
	defer release()

	if !o.opts.Force {
		clean, err := o.backend.WorkingTreeClean(o.opts.IgnorePaths...)
		if err != nil {
			return o.fail(ReasonRestoreFailed, err)
		}
		if !clean {
			return o.fail(ReasonDirtyWorkingTree,
				fmt.Errorf("%w: commit or stash before rolling back to %s", types.ErrDirtyWorkingTree, o.target.Name))
		}
	}
	if o.opts.Strategy == StrategyReset && !o.opts.Force {
		return o.fail(ReasonRestoreFailed,
			fmt.Errorf("reset strategy discards history; confirm with --force (target %s)", o.target.Name))
	}

	scratch, err := os.MkdirTemp("", "greenledger-restore-*")
	if err != nil {
		return o.fail(ReasonRestoreFailed, fmt.Errorf("create scratch dir: %w", err))
	}
	defer os.RemoveAll(scratch)

	archived, err := o.archives.ExtractTo(o.target.SHA, scratch)
	if err != nil {
		return o.fail(ReasonArchiveInvalid, err)
	}
	recorded, err := o.backend.TreeSnapshot(o.target.SHA)
	if err != nil {
		return o.fail(ReasonRestoreFailed, err)
	}
	if drift := archived.Diff(recorded); len(drift) > 0 {
		return o.fail(ReasonTreeDrift,
			fmt.Errorf("%w: sha %s differs at %v", types.ErrTreeDrift, o.target.SHA, drift))
	}

	o.state = StateRestoring
	switch o.opts.Strategy {
	case StrategyMerge:
		newSHA, err := o.backend.MergeRestore(o.target.SHA, archived, o.mergeMessage())
		if err != nil {
			return o.fail(ReasonRestoreFailed, err)
		}
		o.restored = newSHA
	case StrategyReset:
		if err := o.backend.ResetHard(o.target.SHA); err != nil {
			return o.fail(ReasonRestoreFailed, err)
		}
		o.restored = o.target.SHA
	default:
		return o.fail(ReasonRestoreFailed, fmt.Errorf("unknown strategy %q", o.opts.Strategy))
	}
	return nil
}

// Retag records a fresh green tag for the restored head, but only when the
// verification hook reports success. A nil hook or a negative verdict ends
// the rollback without a new tag; that is not a failure.
func (o *Orchestrator) Retag(hook VerifyHook) error {
	if err := o.require(StateRestoring, "Retag"); err != nil {
		return err
	}
	o.state = StateRetagging

	if hook == nil {
		o.state = StateDone
		return nil
	}
	green, err := hook(o.restored)
	if err != nil {
		return o.fail(ReasonRetagFailed, fmt.Errorf("verification run for %s: %w", o.restored, err))
	}
	if !green {
		o.state = StateDone
		return nil
	}

	reported, err := o.backend.ReportedPatchBlock(o.restored)
	if err != nil {
		return o.fail(ReasonRetagFailed, err)
	}
	// A green tag needs a verified archive behind it, so the restored
	// head is archived first. For the reset strategy this is the target's
	// own archive and the create is a no-op.
	tree, err := o.backend.TreeSnapshot(o.restored)
	if err != nil {
		return o.fail(ReasonRetagFailed, err)
	}
	if _, err := o.archives.Create(o.restored, tree, reported); err != nil {
		return o.fail(ReasonRetagFailed, err)
	}
	name := types.TagName(time.Now(), o.restored)
	tag, err := o.tags.Record(name, o.restored, reported)
	if err != nil {
		return o.fail(ReasonRetagFailed, err)
	}
	o.newTag = tag
	o.state = StateDone
	return nil
}

// Run drives the full state machine: Resolve, Verify, Restore, Retag.
func (o *Orchestrator) Run(hook VerifyHook) error {
	if err := o.Resolve(); err != nil {
		return err
	}
	if err := o.Verify(); err != nil {
		return err
	}
	if err := o.Restore(); err != nil {
		return err
	}
	return o.Retag(hook)
}

// mergeMessage builds the conformant commit message for a merge-restore
// commit, carrying a rollback-origin patch id.
func (o *Orchestrator) mergeMessage() string {
	subject := codec.Subject{
		Type:       "fix",
		PlanLineID: o.subject.PlanLineID,
		Role:       "rollback",
		Module:     o.subject.Module,
	}
	pb := types.PatchBlock{
		PatchID: codec.NewRollbackPatchID(time.Now()),
		Status:  types.StatusAccepted,
		Notes:   "restore of " + o.target.Name,
		Source:  types.SourceRollback,
	}
	return codec.FormatMessage(subject, pb)
}

// reportedFor parses the subject and PatchBlock out of the commit message
// the backend holds for a sha.
func (o *Orchestrator) reportedFor(sha string) (codec.Subject, types.PatchBlock, error) {
	reported, err := o.backend.ReportedPatchBlock(sha)
	if err != nil {
		return codec.Subject{}, types.PatchBlock{}, err
	}
	// A second read for the subject keeps the Backend interface narrow.
	subject := codec.Subject{PlanLineID: "PL-0", Module: "unknown"}
	if r, ok := o.backend.(interface{ Message(string) (string, error) }); ok {
		if msg, err := r.Message(sha); err == nil {
			if s, _, err := codec.ParseMessage(msg); err == nil {
				subject = s
			}
		}
	}
	return subject, reported, nil
}

func (o *Orchestrator) require(expected State, step string) error {
	if o.state == expected {
		return nil
	}
	return fmt.Errorf("%s requires state %s, orchestrator is %s", step, expected, o.state)
}

func (o *Orchestrator) fail(reason Reason, err error) error {
	o.state = StateFailed
	o.reason = reason
	return err
}
