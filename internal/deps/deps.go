package deps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// versionTimeout bounds a single version query.
const versionTimeout = 10 * time.Second

// Requirement defines an external dependency the stage scripts rely on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to Command to print its version.
	VersionArgs []string
	// MinVersion is compared against the version parsed from the version output.
	MinVersion string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Missing reports whether a required dependency is unavailable.
func (s Status) Missing() bool { return !s.Available && !s.Optional }

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(ctx, req))
	}
	return results
}

func checkBinary(ctx context.Context, req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	if len(req.VersionArgs) == 0 {
		status.Available = true
		return status
	}

	version, err := queryVersion(ctx, resolved, req.VersionArgs)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Version = version
	if req.MinVersion == "" || version == "" {
		status.Available = true
		return status
	}
	ok, err := meetsMinimum(version, req.MinVersion)
	if err != nil {
		// Builds with unparseable versions are accepted.
		status.Available = true
		return status
	}
	if !ok {
		status.Detail = fmt.Sprintf("version %s is older than %s", version, req.MinVersion)
		return status
	}
	status.Available = true
	return status
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)(?:\.(\d+))?`)

func queryVersion(ctx context.Context, path string, args []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("version check timed out after %s", versionTimeout)
		}
		return "", fmt.Errorf("version check failed: %w", err)
	}
	return ParseVersion(string(out)), nil
}

// ParseVersion extracts the first dotted version number from tool output.
// It returns "" when none is present.
func ParseVersion(output string) string {
	firstLine, _, _ := strings.Cut(output, "\n")
	if m := versionPattern.FindString(firstLine); m != "" {
		return m
	}
	return versionPattern.FindString(output)
}

func meetsMinimum(version, minimum string) (bool, error) {
	have, err := semver.NewVersion(version)
	if err != nil {
		return false, err
	}
	want, err := semver.NewVersion(minimum)
	if err != nil {
		return false, err
	}
	return !have.LessThan(want), nil
}

// CheckFile reports whether path names a readable regular file.
func CheckFile(name, path, description string) Status {
	status := Status{Name: name, Command: path, Description: description}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		status.Detail = fmt.Sprintf("%s not found", path)
	case !info.Mode().IsRegular():
		status.Detail = fmt.Sprintf("%s is not a regular file", path)
	default:
		status.Available = true
	}
	return status
}
