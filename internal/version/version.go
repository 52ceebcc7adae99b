// Package version holds build information, set with -ldflags at release time.
package version

import "fmt"

var (
	// Version is the semantic version of the build.
	Version = "0.1.0"

	// GitCommit is the commit the build was made from.
	GitCommit = ""
)

// String returns the human readable version.
func String() string {
	if GitCommit == "" {
		return fmt.Sprintf("sheetwatch v%s", Version)
	}
	return fmt.Sprintf("sheetwatch v%s (%s)", Version, GitCommit)
}
