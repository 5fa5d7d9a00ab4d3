// Package version records build metadata injected at link time via -ldflags.
package version

import "fmt"

// Version is the semantic version of the binary.
var Version = "dev"

// Commit is the git commit hash the binary was built from.
var Commit = "none"

// Date is the build timestamp.
var Date = "unknown"

// String returns a single-line human-readable version description.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
