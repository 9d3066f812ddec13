// Package integration provides CLI integration tests for greenledger.
package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var (
	// greenledgerBin is the path to the built greenledger binary.
	greenledgerBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot finds the project root by walking up and looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// SetGreenledgerBin sets the path to the greenledger binary (called from TestMain).
func SetGreenledgerBin(path string) {
	greenledgerBin = path
}

// SetBuildErr sets the build error (called from TestMain).
func SetBuildErr(err error) {
	buildErr = err
}

// TestEnv provides an isolated test environment: a git repository with its
// own ledger storage root and configuration directory.
type TestEnv struct {
	t         *testing.T
	TempDir   string
	RepoDir   string
	StoreDir  string
	ConfigDir string
	Repo      *gogit.Repository
}

// NewTestEnv creates an isolated environment with a fresh git repository on
// branch main.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	if buildErr != nil {
		t.Fatalf("failed to build greenledger: %v", buildErr)
	}
	if greenledgerBin == "" {
		t.Fatal("greenledger binary not built (greenledgerBin is empty)")
	}

	tempDir := t.TempDir()
	repoDir := filepath.Join(tempDir, "repo")
	storeDir := filepath.Join(tempDir, "store")
	configDir := filepath.Join(tempDir, "config")

	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		t.Fatalf("failed to create repo dir: %v", err)
	}
	repo, err := gogit.PlainInitWithOptions(repoDir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{
			DefaultBranch: plumbing.ReferenceName("refs/heads/main"),
		},
	})
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}

	return &TestEnv{
		t:         t,
		TempDir:   tempDir,
		RepoDir:   repoDir,
		StoreDir:  storeDir,
		ConfigDir: configDir,
		Repo:      repo,
	}
}

// Commit writes files into the working tree and commits them with message.
// Returns the full commit sha.
func (e *TestEnv) Commit(message string, files map[string]string) string {
	e.t.Helper()

	w, err := e.Repo.Worktree()
	if err != nil {
		e.t.Fatalf("failed to open worktree: %v", err)
	}
	for name, contents := range files {
		path := filepath.Join(e.RepoDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			e.t.Fatalf("failed to create dir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			e.t.Fatalf("failed to write %s: %v", name, err)
		}
		if _, err := w.Add(name); err != nil {
			e.t.Fatalf("failed to add %s: %v", name, err)
		}
	}
	hash, err := w.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "integration",
			Email: "integration@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		e.t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// ReadRepoFile reads a file from the working tree.
func (e *TestEnv) ReadRepoFile(name string) string {
	e.t.Helper()
	data, err := os.ReadFile(filepath.Join(e.RepoDir, name))
	if err != nil {
		e.t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// RepoFileExists reports whether a file exists in the working tree.
func (e *TestEnv) RepoFileExists(name string) bool {
	_, err := os.Stat(filepath.Join(e.RepoDir, name))
	return err == nil
}

// CmdResult holds the result of a greenledger command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes the greenledger CLI with the environment's repo, store, and
// config directories. Returns stdout, stderr, and exit code.
func (e *TestEnv) Run(args ...string) CmdResult {
	e.t.Helper()

	allArgs := append([]string{
		"--repo", e.RepoDir,
		"--store-dir", e.StoreDir,
		"--config-dir", e.ConfigDir,
	}, args...)
	cmd := exec.Command(greenledgerBin, allArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			e.t.Fatalf("failed to run greenledger: %v", err)
		}
	}

	return CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRun executes the greenledger CLI and fails the test on non-zero exit.
func (e *TestEnv) MustRun(args ...string) CmdResult {
	e.t.Helper()
	result := e.Run(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("greenledger %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Stdout, result.Stderr)
	}
	return result
}

// ParseJSON parses JSON output into the target type.
func ParseJSON[T any](t *testing.T, jsonStr string) T {
	t.Helper()
	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", jsonStr, err)
	}
	return result
}
