package execfind

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to write executable: %v", err)
	}
	return path
}

func writePlainFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not executable"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestResolve_ExecutableOverrideWins(t *testing.T) {
	overrideDir := t.TempDir()
	loginDir := t.TempDir()

	override := writeExecutable(t, overrideDir, "tool-custom")
	writeExecutable(t, loginDir, "tool")

	env := map[string]string{"TOOL_CLI_PATH": override}
	got := Resolve("tool", "TOOL_CLI_PATH", env, []string{loginDir}, "")
	if got != override {
		t.Errorf("expected override %s to win, got %s", override, got)
	}
}

func TestResolve_NonExecutableOverrideIsSkipped(t *testing.T) {
	overrideDir := t.TempDir()
	loginDir := t.TempDir()

	override := writePlainFile(t, overrideDir, "tool-custom")
	loginHit := writeExecutable(t, loginDir, "tool")

	env := map[string]string{"TOOL_CLI_PATH": override}
	got := Resolve("tool", "TOOL_CLI_PATH", env, []string{loginDir}, "")
	if got != loginHit {
		t.Errorf("expected login-PATH hit %s, got %s", loginHit, got)
	}
}

func TestResolve_ShellPathBeforeProcessPath(t *testing.T) {
	loginDir := t.TempDir()
	procDir := t.TempDir()

	loginHit := writeExecutable(t, loginDir, "tool")
	writeExecutable(t, procDir, "tool")

	env := map[string]string{"PATH": procDir}
	got := Resolve("tool", "", env, []string{loginDir}, "")
	if got != loginHit {
		t.Errorf("expected shell-path hit %s, got %s", loginHit, got)
	}
}

func TestResolve_ProcessPathFallback(t *testing.T) {
	procDir := t.TempDir()
	procHit := writeExecutable(t, procDir, "tool")

	env := map[string]string{"PATH": procDir}
	got := Resolve("tool", "", env, nil, "")
	if got != procHit {
		t.Errorf("expected process-PATH hit %s, got %s", procHit, got)
	}
}

func TestResolve_HomeFallback(t *testing.T) {
	home := t.TempDir()
	localBin := filepath.Join(home, ".local", "bin")
	if err := os.MkdirAll(localBin, 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", localBin, err)
	}
	hit := writeExecutable(t, localBin, "tool")

	got := Resolve("tool", "", map[string]string{}, nil, home)
	if got != hit {
		t.Errorf("expected home fallback hit %s, got %s", hit, got)
	}
}

func TestResolve_NothingFound(t *testing.T) {
	got := Resolve("definitely-not-a-real-tool", "", map[string]string{}, nil, t.TempDir())
	if got != "" {
		t.Errorf("expected empty result, got %s", got)
	}
}

func TestResolve_SkipsDirectories(t *testing.T) {
	loginDir := t.TempDir()
	// A directory named like the tool must not satisfy the lookup.
	if err := os.MkdirAll(filepath.Join(loginDir, "tool"), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}

	got := Resolve("tool", "", map[string]string{}, []string{loginDir}, "")
	if got != "" {
		t.Errorf("expected empty result for directory candidate, got %s", got)
	}
}
