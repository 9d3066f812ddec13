package rollback

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/greenledger/internal/archive"
	"github.com/mesh-intelligence/greenledger/internal/codec"
	"github.com/mesh-intelligence/greenledger/internal/ledger"
	"github.com/mesh-intelligence/greenledger/pkg/types"
)

// fakeBackend is an in-memory Backend double that records mutations.
type fakeBackend struct {
	head     string
	messages map[string]string
	trees    map[string]types.Tree
	dirty    bool

	mergeCalls int
	resetCalls int
}

func (f *fakeBackend) Head() (types.Commit, error) {
	return types.Commit{SHA: f.head}, nil
}

func (f *fakeBackend) Message(sha string) (string, error) {
	msg, ok := f.messages[sha]
	if !ok {
		return "", fmt.Errorf("unknown commit %s", sha)
	}
	return msg, nil
}

func (f *fakeBackend) ReportedPatchBlock(sha string) (types.PatchBlock, error) {
	msg, err := f.Message(sha)
	if err != nil {
		return types.PatchBlock{}, err
	}
	_, pb, err := codec.ParseMessage(msg)
	return pb, err
}

func (f *fakeBackend) TreeSnapshot(sha string) (types.Tree, error) {
	tree, ok := f.trees[sha]
	if !ok {
		return nil, fmt.Errorf("unknown commit %s", sha)
	}
	return tree, nil
}

func (f *fakeBackend) WorkingTreeClean(ignore ...string) (bool, error) {
	return !f.dirty, nil
}

func (f *fakeBackend) MergeRestore(sha string, tree types.Tree, message string) (string, error) {
	f.mergeCalls++
	newSHA := "feedc0ffee"
	f.trees[newSHA] = tree
	f.messages[newSHA] = message
	f.head = newSHA
	return newSHA, nil
}

func (f *fakeBackend) ResetHard(sha string) error {
	f.resetCalls++
	f.head = sha
	return nil
}

const greenSHA = "a1b2c3d"

func greenMessage() string {
	return "feat(mARCH): PL-7 builder archiver\n\npatch_id: PB-20250812-1234\nstatus: accepted\ncontraintes: none\nnotes: init\ncommit_source: agent"
}

// fixture builds a storage root with one archived, tagged green commit and a
// fake backend agreeing with it.
func fixture(t *testing.T) (*archive.Store, *ledger.Ledger, *fakeBackend) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, archive.DirName), 0o755))

	store, err := archive.NewStore(root)
	require.NoError(t, err)
	tags, err := ledger.New(root, store)
	require.NoError(t, err)

	backend := &fakeBackend{
		head: "ffff999",
		messages: map[string]string{
			greenSHA: greenMessage(),
		},
		trees: map[string]types.Tree{
			greenSHA:  {"main.go": []byte("package main\n")},
			"ffff999": {"main.go": []byte("package main // broken\n")},
		},
	}

	pb, err := backend.ReportedPatchBlock(greenSHA)
	require.NoError(t, err)
	_, err = store.Create(greenSHA, backend.trees[greenSHA], pb)
	require.NoError(t, err)
	_, err = tags.Record("green-20250812-"+greenSHA, greenSHA, pb)
	require.NoError(t, err)

	return store, tags, backend
}

func TestRunMergeStrategy(t *testing.T) {
	store, tags, backend := fixture(t)

	o := New(store, tags, backend, Options{Target: TargetLatest})
	require.NoError(t, o.Run(nil))

	assert.Equal(t, StateDone, o.State())
	assert.Equal(t, 1, backend.mergeCalls)
	assert.Zero(t, backend.resetCalls)

	// The restored head carries the green tree.
	restored, err := backend.TreeSnapshot(o.RestoredSHA())
	require.NoError(t, err)
	assert.True(t, backend.trees[greenSHA].Equal(restored))

	// The restore commit message is itself conformant, rollback-origin.
	_, pb, err := codec.ParseMessage(backend.messages[o.RestoredSHA()])
	require.NoError(t, err)
	assert.Regexp(t, `^RB-\d{8}-[0-9A-F]{4}$`, pb.PatchID)
	assert.Equal(t, types.SourceRollback, pb.Source)

	// Without a verification hook no new tag appears: the latest green
	// tag is unchanged.
	latest, err := tags.ResolveLatest()
	require.NoError(t, err)
	assert.Equal(t, "green-20250812-"+greenSHA, latest.Name)
}

func TestRunExplicitTarget(t *testing.T) {
	store, tags, backend := fixture(t)

	o := New(store, tags, backend, Options{Target: "green-20250812-" + greenSHA})
	require.NoError(t, o.Run(nil))
	assert.Equal(t, greenSHA, o.Target().SHA)
}

func TestRunResetStrategyRequiresForce(t *testing.T) {
	store, tags, backend := fixture(t)

	o := New(store, tags, backend, Options{Strategy: StrategyReset})
	err := o.Run(nil)
	require.Error(t, err)
	assert.Equal(t, StateFailed, o.State())
	assert.Zero(t, backend.resetCalls)

	o = New(store, tags, backend, Options{Strategy: StrategyReset, Force: true})
	require.NoError(t, o.Run(nil))
	assert.Equal(t, 1, backend.resetCalls)
	assert.Equal(t, greenSHA, backend.head)
}

func TestRunNoTarget(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, archive.DirName), 0o755))
	store, err := archive.NewStore(root)
	require.NoError(t, err)
	tags, err := ledger.New(root, store)
	require.NoError(t, err)

	o := New(store, tags, &fakeBackend{}, Options{})
	err = o.Run(nil)
	assert.ErrorIs(t, err, types.ErrNoTarget)
	assert.Equal(t, StateFailed, o.State())
	assert.Equal(t, ReasonNoTarget, o.FailureReason())
}

func TestRunNeverRestoresUnverifiedArchive(t *testing.T) {
	store, tags, backend := fixture(t)

	// Corrupt the stored archive after tagging.
	data, err := os.ReadFile(store.Path(greenSHA))
	require.NoError(t, err)
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(store.Path(greenSHA), data, 0o644))

	o := New(store, tags, backend, Options{})
	err = o.Run(nil)
	require.Error(t, err)

	assert.Equal(t, StateFailed, o.State())
	assert.Equal(t, ReasonArchiveInvalid, o.FailureReason())

	// The backend was never touched.
	assert.Zero(t, backend.mergeCalls)
	assert.Zero(t, backend.resetCalls)
	assert.Equal(t, "ffff999", backend.head)
}

func TestRunAbortsOnTreeDrift(t *testing.T) {
	store, tags, backend := fixture(t)

	// The backend's recorded tree for the green commit no longer matches
	// what was archived.
	backend.trees[greenSHA] = types.Tree{"main.go": []byte("package main // rewritten history\n")}

	o := New(store, tags, backend, Options{})
	err := o.Run(nil)
	assert.ErrorIs(t, err, types.ErrTreeDrift)
	assert.Equal(t, ReasonTreeDrift, o.FailureReason())
	assert.Zero(t, backend.mergeCalls)
}

func TestRunRefusesDirtyWorkingTree(t *testing.T) {
	store, tags, backend := fixture(t)
	backend.dirty = true

	o := New(store, tags, backend, Options{})
	err := o.Run(nil)
	assert.ErrorIs(t, err, types.ErrDirtyWorkingTree)
	assert.Equal(t, ReasonDirtyWorkingTree, o.FailureReason())

	// Force overrides the clean check.
	o = New(store, tags, backend, Options{Force: true})
	require.NoError(t, o.Run(nil))
}

func TestRetagRecordsOnlyOnGreenVerdict(t *testing.T) {
	store, tags, backend := fixture(t)

	o := New(store, tags, backend, Options{})
	require.NoError(t, o.Run(func(sha string) (bool, error) {
		return true, nil
	}))

	assert.Equal(t, StateDone, o.State())
	require.NotEmpty(t, o.NewTag().Name)
	assert.Equal(t, o.RestoredSHA(), o.NewTag().SHA)

	latest, err := tags.ResolveLatest()
	require.NoError(t, err)
	assert.Equal(t, o.NewTag().Name, latest.Name)
}

func TestRetagSkipsOnRedVerdict(t *testing.T) {
	store, tags, backend := fixture(t)

	o := New(store, tags, backend, Options{})
	require.NoError(t, o.Run(func(sha string) (bool, error) {
		return false, nil
	}))

	assert.Equal(t, StateDone, o.State())
	assert.Empty(t, o.NewTag().Name)

	latest, err := tags.ResolveLatest()
	require.NoError(t, err)
	assert.Equal(t, "green-20250812-"+greenSHA, latest.Name)
}

func TestStepsEnforceOrder(t *testing.T) {
	store, tags, backend := fixture(t)

	o := New(store, tags, backend, Options{})
	assert.Error(t, o.Restore(), "Restore before Verify must fail")
	assert.Error(t, o.Retag(nil), "Retag before Restore must fail")
}

func TestRestoreFailsWhenLedgerBusy(t *testing.T) {
	store, tags, backend := fixture(t)

	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "ledger.lock"), []byte("1\n"), 0o644))

	o := New(store, tags, backend, Options{})
	require.NoError(t, o.Resolve())
	require.NoError(t, o.Verify())
	err := o.Restore()
	assert.ErrorIs(t, err, types.ErrLedgerBusy)
	assert.Equal(t, ReasonLedgerBusy, o.FailureReason())
}
