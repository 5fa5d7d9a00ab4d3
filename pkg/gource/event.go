// Package gource defines the canonical change-event model and the writer
// for the Gource custom log format.
package gource

import "strings"

// Action classifies what a commit did to a single file.
type Action uint8

const (
	// ActionAdded marks a file that first appears in a commit.
	ActionAdded Action = iota

	// ActionModified marks a file whose content or type changed.
	ActionModified

	// ActionDeleted marks a file removed by a commit.
	ActionDeleted
)

// String returns the single-letter wire form: "A", "M" or "D".
func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "A"
	case ActionModified:
		return "M"
	case ActionDeleted:
		return "D"
	default:
		return "?"
	}
}

// Event is one file-level change extracted from a commit. Immutable once
// created; every field participates in the total order.
type Event struct {
	// Timestamp is the commit time in seconds since the Unix epoch.
	Timestamp int64

	// Author is the display identity, already alias-resolved and
	// delimiter-escaped.
	Author string

	// Repo identifies the source repository: its path relative to the scan
	// root, slash-separated. Empty when the scan root itself is the
	// repository.
	Repo string

	// Path is the file path inside the repository, slash-separated.
	Path string

	// Action is what happened to the file.
	Action Action
}

// Compare orders events by timestamp, then repository, then path, then
// action, then author. The key covers every field, so two events that
// compare equal are identical and any sort over it is deterministic.
func (e Event) Compare(other Event) int {
	if e.Timestamp != other.Timestamp {
		if e.Timestamp < other.Timestamp {
			return -1
		}

		return 1
	}

	repoCmp := strings.Compare(e.Repo, other.Repo)
	if repoCmp != 0 {
		return repoCmp
	}

	pathCmp := strings.Compare(e.Path, other.Path)
	if pathCmp != 0 {
		return pathCmp
	}

	if e.Action != other.Action {
		if e.Action < other.Action {
			return -1
		}

		return 1
	}

	return strings.Compare(e.Author, other.Author)
}

// DisplayPath is the path written to the log: the in-repository path
// prefixed with the repository id, so files from different repositories
// occupy distinct subtrees in the visualization.
func (e Event) DisplayPath() string {
	if e.Repo == "" {
		return e.Path
	}

	return e.Repo + "/" + e.Path
}
