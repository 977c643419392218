package state

import (
	"fmt"
	"regexp"
)

var (
	gitTagRegex    = regexp.MustCompile(`^v\d+\.\d+\.\d+$`)
	gitCommitRegex = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// ContractsVersion is the tag of the contracts image artifacts are read from.
type ContractsVersion string

func (c ContractsVersion) Check() error {
	isGitTag := gitTagRegex.MatchString(string(c))
	isGitCommit := gitCommitRegex.MatchString(string(c))
	isLocal := c == "local"
	isLatest := c == "latest"

	if !isGitTag && !isGitCommit && !isLocal && !isLatest {
		return fmt.Errorf("contracts version %q must be a vX.Y.Z tag, a git commit, 'local' or 'latest'", string(c))
	}

	return nil
}
