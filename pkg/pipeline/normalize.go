package pipeline

import (
	"github.com/Sumatoshi-tech/gourcefang/pkg/gource"
)

// Normalizer converts raw commits into canonical events. The changeset
// filter drops oversized commits whole; author identities pass through
// the alias table.
type Normalizer struct {
	// Aliases maps escaped raw identities to display identities. A nil
	// table passes every identity through unchanged, apart from the
	// delimiter escaping.
	Aliases gource.AliasTable

	// MaxChangesetSize drops any commit touching more files than this.
	// Zero disables the filter.
	MaxChangesetSize int
}

// Normalize converts one commit into events for the given repository.
// dropped reports that the changeset filter rejected the whole commit.
func (n *Normalizer) Normalize(repoID string, commit Commit) (events []gource.Event, dropped bool) {
	if n.MaxChangesetSize > 0 && len(commit.Changes) > n.MaxChangesetSize {
		return nil, true
	}

	if len(commit.Changes) == 0 {
		return nil, false
	}

	author := n.Aliases.Resolve(commit.Author)

	events = make([]gource.Event, 0, len(commit.Changes))

	for _, change := range commit.Changes {
		events = append(events, gource.Event{
			Timestamp: commit.Timestamp,
			Author:    author,
			Repo:      repoID,
			Path:      change.Path,
			Action:    change.Action,
		})
	}

	return events, false
}
