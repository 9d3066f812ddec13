package reports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/greenledger/pkg/types"
)

func testConfig(t *testing.T) types.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, DirName), 0o755))
	return types.Config{StoreDir: root, RepoRoot: root}
}

func attachedStore(t *testing.T) (*Store, types.Config) {
	t.Helper()
	cfg := testConfig(t)
	s := NewStore()
	require.NoError(t, s.Attach(cfg))
	t.Cleanup(func() { s.Detach() })
	return s, cfg
}

func TestAttachRequiresBootstrap(t *testing.T) {
	s := NewStore()
	err := s.Attach(types.Config{StoreDir: t.TempDir(), RepoRoot: "."})
	assert.ErrorIs(t, err, types.ErrStoreNotInitialized)
}

func TestAttachDetachLifecycle(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore()

	require.NoError(t, s.Attach(cfg))
	assert.ErrorIs(t, s.Attach(cfg), types.ErrAlreadyAttached)

	require.NoError(t, s.Detach())
	require.NoError(t, s.Detach(), "detach is idempotent")

	_, err := s.Latest("PL-1")
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestAppendAndLatest(t *testing.T) {
	s, _ := attachedStore(t)

	first, err := s.Append("PL-1", []types.Finding{
		{Checker: "file_checker", Level: types.LevelError, Message: "missing docstring"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Seq)

	second, err := s.Append("PL-1", []types.Finding{
		{Checker: "file_checker", Level: types.LevelInfo, Message: "clean"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Seq)

	latest, err := s.Latest("PL-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Seq)
	require.Len(t, latest.Findings, 1)
	assert.Equal(t, "clean", latest.Findings[0].Message)
}

func TestLatestNoneFound(t *testing.T) {
	s, _ := attachedStore(t)
	_, err := s.Latest("PL-99")
	assert.ErrorIs(t, err, types.ErrNoReports)
}

func TestAppendValidatesIdentifier(t *testing.T) {
	s, _ := attachedStore(t)

	_, err := s.Append("plan-1", nil)
	assert.ErrorIs(t, err, types.ErrInvalidPlanLineID)

	_, err = s.Append("PL-1", []types.Finding{{Checker: "c", Level: "fatal", Message: "m"}})
	assert.Error(t, err)
}

func TestHistoryOrderedOldestFirst(t *testing.T) {
	s, _ := attachedStore(t)

	for _, msg := range []string{"first", "second", "third"} {
		_, err := s.Append("PL-2", []types.Finding{
			{Checker: "module_checker", Level: types.LevelInfo, Message: msg},
		})
		require.NoError(t, err)
	}

	history, err := s.History("PL-2")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[0].Findings[0].Message)
	assert.Equal(t, "third", history[2].Findings[0].Message)
	assert.Equal(t, []int{1, 2, 3}, []int{history[0].Seq, history[1].Seq, history[2].Seq})
}

func TestReportsSurviveReattach(t *testing.T) {
	cfg := testConfig(t)
	s := NewStore()
	require.NoError(t, s.Attach(cfg))

	_, err := s.Append("PL-3", []types.Finding{
		{Checker: "plan_validator", Level: types.LevelWarning, Message: "scope creep"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Detach())

	// The JSONL files are the source of truth; a fresh attach rebuilds
	// the index from them.
	s2 := NewStore()
	require.NoError(t, s2.Attach(cfg))
	defer s2.Detach()

	latest, err := s2.Latest("PL-3")
	require.NoError(t, err)
	assert.Equal(t, "scope creep", latest.Findings[0].Message)

	// Appending continues the sequence.
	next, err := s2.Append("PL-3", []types.Finding{
		{Checker: "plan_validator", Level: types.LevelInfo, Message: "resolved"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, next.Seq)
}

func TestAppendOnlyOnDisk(t *testing.T) {
	s, cfg := attachedStore(t)

	_, err := s.Append("PL-4", []types.Finding{
		{Checker: "c", Level: types.LevelInfo, Message: "a"},
	})
	require.NoError(t, err)
	path := filepath.Join(cfg.StoreDir, DirName, "PL-4.jsonl")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Append("PL-4", []types.Finding{
		{Checker: "c", Level: types.LevelInfo, Message: "b"},
	})
	require.NoError(t, err)
	after, err := os.ReadFile(path)
	require.NoError(t, err)

	// The earlier record is still there, byte for byte.
	assert.Equal(t, string(before), string(after[:len(before)]))
	assert.Greater(t, len(after), len(before))
}
