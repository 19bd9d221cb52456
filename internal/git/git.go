package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// HeadCommit returns the current HEAD hash of the repository at dir, or
// "workspace" when dir is not a git repository. Commit labels only tag
// change sets and snapshots; their absence never blocks a sync.
func HeadCommit(dir string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return "workspace"
	}
	return strings.TrimSpace(string(output))
}

// ChangedFiles lists the paths changed since baseRef.
func ChangedFiles(dir, baseRef string) ([]string, error) {
	cmd := exec.Command("git", "diff", "--name-only", baseRef)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff failed: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}
