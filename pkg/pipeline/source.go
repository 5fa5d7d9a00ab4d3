package pipeline

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/gourcefang/pkg/discover"
	"github.com/Sumatoshi-tech/gourcefang/pkg/gitlib"
	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

// FileChange is one file-level change within a commit.
type FileChange struct {
	Path   string
	Action gource.Action
}

// Commit is the backend-independent view of one commit: who, when and
// which files changed.
type Commit struct {
	Author    string
	Timestamp int64
	Changes   []FileChange
}

// CommitSource yields the commits of one repository.
type CommitSource interface {
	// ID is the repository identifier carried on every event.
	ID() string

	// Commits streams the repository's commits to visit. An error from
	// visit stops the stream and is returned unchanged.
	Commits(ctx context.Context, visit func(Commit) error) error
}

// GitSource reads commits from a git repository via libgit2.
type GitSource struct {
	repo discover.Repo
}

// NewGitSource creates a source for one discovered repository.
func NewGitSource(repo discover.Repo) *GitSource {
	return &GitSource{repo: repo}
}

// ID returns the repository id, the slash-relative path from the scan
// root. Empty when the scan root itself is the repository.
func (s *GitSource) ID() string {
	return s.repo.Rel
}

// Commits opens the repository, validates it and walks its history from
// HEAD in commit-time order. The event timestamp is the committer time.
// Commits whose tree diff is empty are not visited.
func (s *GitSource) Commits(ctx context.Context, visit func(Commit) error) error {
	repo, openErr := gitlib.OpenRepository(s.repo.Path)
	if openErr != nil {
		return fmt.Errorf("%s: %w", s.repo.Path, openErr)
	}
	defer repo.Free()

	validateErr := repo.Validate()
	if validateErr != nil {
		return fmt.Errorf("%s: %w", s.repo.Path, validateErr)
	}

	iter, logErr := repo.Log()
	if logErr != nil {
		return fmt.Errorf("%s: %w", s.repo.Path, logErr)
	}
	defer iter.Close()

	return iter.ForEach(func(commit *gitlib.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		changes, diffErr := gitlib.CommitChanges(commit)
		if diffErr != nil {
			return fmt.Errorf("commit %s: %w", commit.Hash(), diffErr)
		}

		if len(changes) == 0 {
			return nil
		}

		converted := Commit{
			Author:    commit.Author().Name,
			Timestamp: commit.Committer().When.Unix(),
			Changes:   make([]FileChange, 0, len(changes)),
		}

		for _, change := range changes {
			converted.Changes = append(converted.Changes, FileChange{
				Path:   change.Path,
				Action: eventAction(change.Action),
			})
		}

		return visit(converted)
	})
}

// eventAction maps a tree-diff action onto the event taxonomy.
func eventAction(action gitlib.ChangeAction) gource.Action {
	switch action {
	case gitlib.Insert:
		return gource.ActionAdded
	case gitlib.Delete:
		return gource.ActionDeleted
	case gitlib.Modify:
		return gource.ActionModified
	default:
		return gource.ActionModified
	}
}
