// Package worktree resolves the four paths the engine operates over
// (spec.md §3 "Worktree paths") and reads blobs out of the VCS HEAD tree
// for the Issue Store's tier-2 fallback (spec.md §4.3). Grounded on the
// teacher's internal/git/worktree.go, which drives "git worktree"/"git
// show-ref" via os/exec with cmd.Dir set to the target checkout — the same
// idiom used here for "git rev-parse" and "git show".
package worktree

import (
	"bytes"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jit-dev/jit/internal/errkind"
	"github.com/jit-dev/jit/internal/types"
)

// Resolve determines the four WorktreePaths for the checkout rooted at
// dir, by shelling out to git rev-parse. dir need not be the repository
// root; git resolves it from any subdirectory.
func Resolve(dir string) (types.WorktreePaths, error) {
	worktreeRoot, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return types.WorktreePaths{}, err
	}
	commonDir, err := gitOutput(dir, "rev-parse", "--git-common-dir")
	if err != nil {
		return types.WorktreePaths{}, err
	}
	if !filepath.IsAbs(commonDir) {
		commonDir = filepath.Join(worktreeRoot, commonDir)
	}
	commonDir, err = filepath.Abs(commonDir)
	if err != nil {
		return types.WorktreePaths{}, errkind.Wrap(errkind.IO, err, "resolve common dir")
	}
	// The common dir as returned by git is the ".git" metadata directory
	// itself; the shared control plane lives inside it, at
	// <parent of common dir>/.git/jit (the same place for every worktree).
	repoRoot := filepath.Dir(commonDir)

	return types.WorktreePaths{
		CommonDir:    commonDir,
		WorktreeRoot: worktreeRoot,
		LocalJIT:     filepath.Join(worktreeRoot, ".jit"),
		SharedJIT:    filepath.Join(repoRoot, ".git", "jit"),
	}, nil
}

// MainWorktreeRoot returns the path of the repository's principal checkout
// (GLOSSARY "Main worktree"), by parsing "git worktree list --porcelain"
// and taking the first entry, matching how git itself always lists the
// main worktree first.
func MainWorktreeRoot(dir string) (string, error) {
	out, err := gitOutput(dir, "worktree", "list", "--porcelain")
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "worktree ") {
			return strings.TrimPrefix(line, "worktree "), nil
		}
	}
	return "", errkind.New(errkind.IO, "could not determine main worktree from 'git worktree list'")
}

// ReadHEADBlob reads path as it exists in the current checkout's HEAD
// commit (tier T2 of the Issue Store's 3-tier read). Returns
// errkind.NotFound if the path doesn't exist at HEAD (including when
// there is no HEAD commit yet).
func ReadHEADBlob(worktreeRoot, relPath string) ([]byte, error) {
	cmd := exec.Command("git", "show", "HEAD:"+filepath.ToSlash(relPath))
	cmd.Dir = worktreeRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errkind.New(errkind.NotFound, "%s not found at HEAD: %s", relPath, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// ListHEADDir lists the base names of files present under relPath in the
// checkout's HEAD tree, via "git ls-tree". Used by the Issue Store to
// enumerate tier-T2 issue IDs without reading every blob. Returns an
// error (not an empty list) if there is no HEAD commit or relPath does
// not exist there, so callers can distinguish "nothing at HEAD" from
// "HEAD has an empty directory".
func ListHEADDir(worktreeRoot, relPath string) ([]string, error) {
	out, err := gitOutput(worktreeRoot, "ls-tree", "--name-only", "HEAD:"+filepath.ToSlash(relPath))
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errkind.Wrap(errkind.IO, err, "git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}
