package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

var (
	// ErrNoHead indicates a repository whose HEAD cannot be resolved,
	// typically an unborn branch in a freshly initialized repository.
	ErrNoHead = errors.New("repository has no HEAD")

	// ErrBareRepository indicates a repository without a work tree.
	ErrBareRepository = errors.New("repository is bare")

	// ErrEmptyRepository indicates a repository with no commits.
	ErrEmptyRepository = errors.New("repository is empty")

	// ErrHeadDetached indicates a repository whose HEAD points at a
	// commit instead of a branch.
	ErrHeadDetached = errors.New("repository HEAD is detached")
)

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the repository path.
func (r *Repository) Path() string {
	return r.path
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Validate reports whether commit history can be read from this
// repository. It rejects repositories without a resolvable HEAD, bare
// repositories, repositories with no commits and detached HEADs.
func (r *Repository) Validate() error {
	head, headErr := r.repo.Head()
	if headErr != nil {
		return fmt.Errorf("%w: %s", ErrNoHead, headErr)
	}

	head.Free()

	bare, bareErr := r.repo.IsBare()
	if bareErr == nil && bare {
		return ErrBareRepository
	}

	empty, emptyErr := r.repo.IsEmpty()
	if emptyErr == nil && empty {
		return ErrEmptyRepository
	}

	detached, detachedErr := r.repo.IsHeadDetached()
	if detachedErr == nil && detached {
		return ErrHeadDetached
	}

	return nil
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// Log returns an iterator over all commits reachable from HEAD, newest
// first by commit time.
func (r *Repository) Log() (*CommitIter, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	headRef, headErr := r.repo.Head()
	if headErr != nil {
		walk.Free()

		return nil, fmt.Errorf("get HEAD: %w", headErr)
	}
	defer headRef.Free()

	pushErr := walk.Push(headRef.Target())
	if pushErr != nil {
		walk.Free()

		return nil, fmt.Errorf("push HEAD to revwalk: %w", pushErr)
	}

	walk.Sorting(git2go.SortTime)

	return &CommitIter{walk: walk, repo: r}, nil
}

// DiffTreeToTree computes the diff between two trees. A nil oldTree
// diffs against the empty tree, turning every file into an addition.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree) (*git2go.Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	var oldT, newT *git2go.Tree
	if oldTree != nil {
		oldT = oldTree.tree
	}

	if newTree != nil {
		newT = newTree.tree
	}

	diff, err := r.repo.DiffTreeToTree(oldT, newT, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return diff, nil
}
