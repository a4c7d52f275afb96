package types

// WorktreePaths locates the four directories the engine reads and writes
// (spec.md §3 "Worktree paths", §6 file layout).
type WorktreePaths struct {
	// CommonDir is the shared VCS metadata root (e.g. the real .git
	// directory, shared by every worktree of a repository).
	CommonDir string
	// WorktreeRoot is this checkout's root directory.
	WorktreeRoot string
	// LocalJIT is per-worktree control data under the checkout
	// (<worktree_root>/.jit).
	LocalJIT string
	// SharedJIT is the control plane under the common dir
	// (<common_dir>/jit), shared by every checkout of the repository.
	SharedJIT string
}
