package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestMain builds the greenledger binary once before running tests.
func TestMain(m *testing.M) {
	projectRoot, err := FindProjectRoot()
	if err != nil {
		SetBuildErr(err)
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "greenledger-test-*")
	if err != nil {
		SetBuildErr(err)
		os.Exit(1)
	}
	binPath := filepath.Join(tmpDir, "greenledger")
	SetGreenledgerBin(binPath)

	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/greenledger")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		SetBuildErr(&BuildError{
			Err:    err,
			Output: string(output),
		})
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmpDir)
	os.Exit(code)
}

func TestVersion(t *testing.T) {
	env := NewTestEnv(t)

	result := env.MustRun("version")
	if !strings.Contains(result.Stdout, "greenledger") {
		t.Errorf("version output missing binary name: %q", result.Stdout)
	}
}

func TestCommandsFailWithoutInit(t *testing.T) {
	env := NewTestEnv(t)
	env.Commit(conformantMessage("PL-1", "PB-20250810-0001"), map[string]string{
		"main.go": "package main\n",
	})

	result := env.Run("record-green")
	if result.ExitCode != 2 {
		t.Errorf("record-green before init: exit %d, want 2\nstderr: %s", result.ExitCode, result.Stderr)
	}
}
