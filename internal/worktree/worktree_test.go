package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/jit-dev/jit/internal/errkind"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "init", "-q")
	run(t, dir, "config", "user.email", "test@example.com")
	run(t, dir, "config", "user.name", "Test")
	return dir
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v\n%s", args, err, out)
	}
}

func commitFile(t *testing.T, dir, relPath, contents string) {
	t.Helper()
	full := filepath.Join(dir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	run(t, dir, "add", relPath)
	run(t, dir, "commit", "-q", "-m", "add "+relPath)
}

func TestResolveReturnsWorktreePaths(t *testing.T) {
	dir := initRepo(t)
	paths, err := Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if paths.WorktreeRoot == "" {
		t.Fatal("expected non-empty worktree root")
	}
	if filepath.Base(paths.LocalJIT) != ".jit" {
		t.Fatalf("expected LocalJIT to end in .jit, got %s", paths.LocalJIT)
	}
	if filepath.Base(filepath.Dir(paths.SharedJIT)) != ".git" {
		t.Fatalf("expected SharedJIT under .git, got %s", paths.SharedJIT)
	}
}

func TestMainWorktreeRootMatchesSoleCheckout(t *testing.T) {
	dir := initRepo(t)
	root, err := MainWorktreeRoot(dir)
	if err != nil {
		t.Fatalf("main worktree root: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	wantResolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	if resolved != wantResolved {
		t.Fatalf("expected main worktree root %s, got %s", wantResolved, resolved)
	}
}

func TestReadHEADBlobReturnsCommittedContent(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "issues/abc.yaml", "title: hello\n")

	blob, err := ReadHEADBlob(dir, "issues/abc.yaml")
	if err != nil {
		t.Fatalf("read head blob: %v", err)
	}
	if string(blob) != "title: hello\n" {
		t.Fatalf("expected committed content, got %q", blob)
	}
}

func TestReadHEADBlobMissingPathReturnsNotFound(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "issues/abc.yaml", "title: hello\n")

	_, err := ReadHEADBlob(dir, "issues/missing.yaml")
	if !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestReadHEADBlobNoCommitsReturnsNotFound(t *testing.T) {
	dir := initRepo(t)
	_, err := ReadHEADBlob(dir, "issues/abc.yaml")
	if !errkind.Is(err, errkind.NotFound) {
		t.Fatalf("expected NotFound when repo has no HEAD, got %v", err)
	}
}

func TestListHEADDirListsCommittedFiles(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "issues/a.yaml", "a")
	commitFile(t, dir, "issues/b.yaml", "b")

	names, err := ListHEADDir(dir, "issues")
	if err != nil {
		t.Fatalf("list head dir: %v", err)
	}
	if len(names) != 2 || names[0] != "a.yaml" || names[1] != "b.yaml" {
		t.Fatalf("expected [a.yaml b.yaml], got %v", names)
	}
}

func TestListHEADDirMissingDirReturnsError(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "issues/a.yaml", "a")

	if _, err := ListHEADDir(dir, "nope"); err == nil {
		t.Fatal("expected error for directory absent at HEAD")
	}
}
