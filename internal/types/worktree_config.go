package types

// WorktreeIdentity is the contents of .jit/worktree.json: the identity a
// worktree presents to the Lease Ledger when acquiring claims (spec.md §6).
type WorktreeIdentity struct {
	WorktreeID string `json:"worktree_id"`
	Branch     string `json:"branch"`
}
