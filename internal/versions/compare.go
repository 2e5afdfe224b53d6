package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsNewerVersion reports whether newVersion is strictly greater than oldVersion.
// It uses semantic versioning for comparison when both strings are valid semver,
// and falls back to lexicographic string comparison otherwise.
func IsNewerVersion(newVersion, oldVersion string) bool {
	newSemver, errNew := semver.NewVersion(newVersion)
	oldSemver, errOld := semver.NewVersion(oldVersion)

	if errNew != nil || errOld != nil {
		return newVersion > oldVersion
	}

	return newSemver.GreaterThan(oldSemver)
}

// ParseClientVersion extracts the version from a "name,version,platform" client string
func ParseClientVersion(clientVersion string) string {
	parts := strings.Split(clientVersion, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(clientVersion)
	}
	return strings.TrimSpace(parts[1])
}

// MeetsMinimum reports whether a client string is at least minimum.
// An empty minimum accepts every client; development builds are always accepted.
func MeetsMinimum(clientVersion, minimum string) bool {
	if minimum == "" {
		return true
	}
	v := ParseClientVersion(clientVersion)
	if v == "dev" {
		return true
	}
	if _, err := semver.NewVersion(v); err != nil {
		return false
	}
	return !IsNewerVersion(minimum, v)
}
