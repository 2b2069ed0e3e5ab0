// Package deps reports on external executables medialog can call out to.
package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// versionProbeTimeout bounds a single version probe.
const versionProbeTimeout = 5 * time.Second

// Requirement defines an external dependency medialog relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the resolved binary and the first
	// non-empty output line is reported as its version.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Path        string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
// A failing version probe leaves the binary available and records the reason
// in Detail.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := exec.LookPath(cmd)
		if err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		if len(req.VersionArgs) > 0 {
			version, err := probeVersion(ctx, resolved, req.VersionArgs)
			if err != nil {
				status.Detail = fmt.Sprintf("version probe failed: %v", err)
			} else {
				status.Version = version
			}
		}
		results = append(results, status)
	}
	return results
}

func probeVersion(ctx context.Context, binary string, args []string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, binary, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		return "", err
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", nil
}
