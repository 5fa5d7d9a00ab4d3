package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified, renamed, copied or changed type.
	Modify
)

// Change represents a single file-level change between two trees. Path
// is the new-side path; for deletions libgit2 mirrors the old path there.
type Change struct {
	Action ChangeAction
	Path   string
}

// Changes is a collection of Change values.
type Changes []Change

// TreeDiff computes the changes between two trees. A nil oldTree diffs
// against the empty tree. Skips the diff entirely when both tree OIDs
// are equal (e.g. metadata-only commits).
func TreeDiff(repo *Repository, oldTree, newTree *Tree) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = diff.Free()
	}()

	numDeltas, numErr := diff.NumDeltas()
	if numErr != nil {
		return nil, fmt.Errorf("get num deltas: %w", numErr)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		switch delta.Status {
		case git2go.DeltaAdded:
			changes = append(changes, Change{Action: Insert, Path: delta.NewFile.Path})
		case git2go.DeltaDeleted:
			changes = append(changes, Change{Action: Delete, Path: delta.NewFile.Path})
		case git2go.DeltaModified, git2go.DeltaRenamed, git2go.DeltaCopied, git2go.DeltaTypeChange:
			changes = append(changes, Change{Action: Modify, Path: delta.NewFile.Path})
		case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
			git2go.DeltaUnreadable, git2go.DeltaConflicted:
			// These do not change the tree.
			continue
		}
	}

	return changes, nil
}

// CommitChanges computes the file-level changes introduced by a commit.
// Single-parent commits diff against the parent tree. Root and merge
// commits diff against the empty tree, so every file in the commit's
// tree appears as an insertion.
func CommitChanges(c *Commit) (Changes, error) {
	var oldTree *Tree

	if c.NumParents() == 1 {
		parent, parentErr := c.Parent(0)
		if parentErr != nil {
			return nil, parentErr
		}

		tree, treeErr := parent.Tree()
		parent.Free()

		if treeErr != nil {
			return nil, treeErr
		}

		oldTree = tree
	}

	newTree, newErr := c.Tree()
	if newErr != nil {
		if oldTree != nil {
			oldTree.Free()
		}

		return nil, newErr
	}

	changes, diffErr := TreeDiff(c.repo, oldTree, newTree)

	if oldTree != nil {
		oldTree.Free()
	}

	newTree.Free()

	return changes, diffErr
}
