// Package discover locates git repositories under a scan root and applies
// repository-name filtering before any history is read.
package discover

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
)

// gitDirName marks a directory as a repository work tree.
const gitDirName = ".git"

var (
	// ErrConflictingFilters indicates both an include and an exclude set
	// were supplied.
	ErrConflictingFilters = errors.New("include and exclude are mutually exclusive")

	// ErrNotRepository indicates a scan root that is not a git work tree.
	ErrNotRepository = errors.New("path is not a git repository")

	// ErrNoRepositories indicates a recursive scan that matched nothing.
	ErrNoRepositories = errors.New("no repositories found")
)

// Repo is one discovered repository candidate. Validity (openable, has a
// HEAD, not bare) is checked later when the repository is first opened.
type Repo struct {
	// Path locates the repository work tree on disk.
	Path string

	// Rel is the repository id: the work tree's path relative to the scan
	// root, slash-separated. Empty when the scan root itself is the
	// repository.
	Rel string

	// Name is the base name of the repository directory, used for
	// include/exclude matching.
	Name string
}

// Filter restricts a recursive scan to an allow-list or a deny-list of
// repository names. At most one of the two sets may be populated.
type Filter struct {
	Include []string
	Exclude []string
}

// Validate rejects a filter carrying both sets.
func (f Filter) Validate() error {
	if len(f.Include) > 0 && len(f.Exclude) > 0 {
		return ErrConflictingFilters
	}

	return nil
}

// Match reports whether a repository name passes the filter.
func (f Filter) Match(name string) bool {
	if len(f.Include) > 0 {
		return slices.Contains(f.Include, name)
	}

	if len(f.Exclude) > 0 {
		return !slices.Contains(f.Exclude, name)
	}

	return true
}

// Scan finds repositories under root. Without recursion the root itself
// must be a repository. With recursion the tree is descended without
// depth limit and every directory containing a .git entry becomes a
// repository and a leaf: neither .git nor anything below the work tree is
// descended into, so checkouts vendored inside another work tree are not
// double counted. Results are ordered by relative path.
func Scan(root string, recursive bool, filter Filter) ([]Repo, error) {
	validateErr := filter.Validate()
	if validateErr != nil {
		return nil, validateErr
	}

	info, statErr := os.Stat(root)
	if statErr != nil {
		return nil, fmt.Errorf("scan root: %w", statErr)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
	}

	if !recursive {
		return scanSingle(root)
	}

	repos, walkErr := scanTree(root)
	if walkErr != nil {
		return nil, walkErr
	}

	matched := repos[:0]

	for _, repo := range repos {
		if filter.Match(repo.Name) {
			matched = append(matched, repo)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%s: %w", root, ErrNoRepositories)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Rel < matched[j].Rel
	})

	return matched, nil
}

func scanSingle(root string) ([]Repo, error) {
	hasGit, err := hasGitDir(root)
	if err != nil {
		return nil, err
	}

	if !hasGit {
		return nil, fmt.Errorf("%s: %w", root, ErrNotRepository)
	}

	abs, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, fmt.Errorf("resolve root: %w", absErr)
	}

	return []Repo{{Path: root, Rel: "", Name: filepath.Base(abs)}}, nil
}

func scanTree(root string) ([]Repo, error) {
	abs, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, fmt.Errorf("resolve root: %w", absErr)
	}

	var repos []Repo

	var walk func(dir, rel, name string) error

	walk = func(dir, rel, name string) error {
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			return fmt.Errorf("scan %s: %w", dir, readErr)
		}

		var subdirs []string

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			if entry.Name() == gitDirName {
				repos = append(repos, Repo{Path: dir, Rel: rel, Name: name})

				return nil
			}

			subdirs = append(subdirs, entry.Name())
		}

		for _, sub := range subdirs {
			walkErr := walk(filepath.Join(dir, sub), path.Join(rel, sub), sub)
			if walkErr != nil {
				return walkErr
			}
		}

		return nil
	}

	walkRootErr := walk(root, "", filepath.Base(abs))
	if walkRootErr != nil {
		return nil, walkRootErr
	}

	return repos, nil
}

func hasGitDir(dir string) (bool, error) {
	info, err := os.Stat(filepath.Join(dir, gitDirName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("probe %s: %w", dir, err)
	}

	return info.IsDir(), nil
}
