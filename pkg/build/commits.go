// Package build compares two commits of an extension by building each one,
// provisioning a local instance for it and benchmarking it.
package build

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/pgbenchoor/pkg/target"
)

// ParseCommitRange splits "from..to" into its two commits.
func ParseCommitRange(commits string) (from, to string, err error) {
	parts := strings.Split(commits, "..")

	if strings.Count(commits, ".") != 2 || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &target.ConfigurationError{
			Reason: fmt.Sprintf("commit range %q must have the form commit1..commit2", commits),
		}
	}

	return parts[0], parts[1], nil
}
