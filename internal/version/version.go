// Package version holds build information injected via ldflags.
package version

import "fmt"

const implementation = "userop-simulator"

var (
	// Release is the release version, e.g. "v0.1.0".
	Release = "dev"
	// GitCommit is the short git commit hash.
	GitCommit = "unknown"
)

// GetRelease returns the release version.
func GetRelease() string {
	return Release
}

// GetGitCommit returns the git commit hash.
func GetGitCommit() string {
	return GitCommit
}

// Full returns the implementation name with release and commit, as logged on
// startup.
func Full() string {
	return fmt.Sprintf("%s/%s-%s", implementation, Release, GitCommit)
}
