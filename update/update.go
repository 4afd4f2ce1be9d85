// Package update watches the project's GitHub releases so a running
// dashboard can surface a one-line notice when a newer build exists. It only
// checks; installing the new binary is left to the user.
package update

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Repo       = "agenthud/agenthud"
	BinaryName = "agenthud"
)

// Release describes a published build newer than the running one.
type Release struct {
	Version     string
	AssetURL    string
	ChecksumURL string
}

type semver struct {
	major, minor, patch int
}

// parseSemver accepts tags like v1.2.3, 1.2.3-rc1, or 1.2.3+build; prerelease
// and build suffixes are ignored for ordering.
func parseSemver(v string) (semver, error) {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return semver{}, fmt.Errorf("invalid semver: %q", v)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return semver{}, err
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return semver{}, err
	}
	patch, err := strconv.Atoi(parts[2])
	if err != nil {
		return semver{}, err
	}
	return semver{major, minor, patch}, nil
}

func (s semver) greaterThan(o semver) bool {
	if s.major != o.major {
		return s.major > o.major
	}
	if s.minor != o.minor {
		return s.minor > o.minor
	}
	return s.patch > o.patch
}

// NewerThan reports whether the release supersedes the running version.
// Unparseable versions (including "dev") never update.
func (r Release) NewerThan(current string) bool {
	cur, err := parseSemver(current)
	if err != nil {
		return false
	}
	rel, err := parseSemver(r.Version)
	if err != nil {
		return false
	}
	return rel.greaterThan(cur)
}
