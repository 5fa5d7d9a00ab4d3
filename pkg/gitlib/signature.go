package gitlib

import "time"

// Signature identifies the author or committer of a commit, with the
// time the action was recorded.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}
