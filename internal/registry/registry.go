package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/mod/semver"
)

// Latest asks a fetcher for the newest published version.
const Latest = "latest"

// ErrNotFound is returned when the program or the requested version does
// not exist.
var ErrNotFound = errors.New("program not found")

// NetworkError reports a failed registry exchange: a transport error, an
// unexpected status or an unreadable response.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("registry %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("registry %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsLatest reports whether version asks for the newest version.
func IsLatest(version string) bool {
	return version == "" || version == Latest
}

// canonical converts a manifest version ("1.2.3") to the form
// golang.org/x/mod/semver understands ("v1.2.3").
func canonical(version string) string {
	if strings.HasPrefix(version, "v") {
		return version
	}
	return "v" + version
}

// newest returns the highest valid semantic version in versions, or "" if
// there is none. Invalid versions are ignored.
func newest(versions []string) string {
	valid := slices.DeleteFunc(slices.Clone(versions), func(v string) bool {
		return !semver.IsValid(canonical(v))
	})
	if len(valid) == 0 {
		return ""
	}
	return slices.MaxFunc(valid, func(a, b string) int {
		if c := semver.Compare(canonical(a), canonical(b)); c != 0 {
			return c
		}
		// Equal precedence ("1.0.0" and "v1.0.0"): keep the order stable.
		return strings.Compare(a, b)
	})
}

// ProjectHash identifies a project to the registry for download counting:
// the hex SHA-256 of the project's absolute path.
func ProjectHash(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("project hash: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:]), nil
}
