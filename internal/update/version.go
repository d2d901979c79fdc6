package update

import (
	"strings"

	"golang.org/x/mod/semver"
)

// NormalizeVersion trims whitespace and a leading 'v'.
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}

// canonical returns s in the "vMAJOR.MINOR.PATCH" form semver expects.
func canonical(s string) (string, bool) {
	v := "v" + NormalizeVersion(s)
	if !semver.IsValid(v) {
		return "", false
	}
	return v, true
}

// CompareVersions compares two version labels. ok is false when either
// side is not a semantic version.
func CompareVersions(a, b string) (cmp int, ok bool) {
	ca, okA := canonical(a)
	cb, okB := canonical(b)
	if !okA || !okB {
		return 0, false
	}
	return semver.Compare(ca, cb), true
}

// IsNewer reports whether release should be offered over installed.
// Labels that do not parse as semantic versions fall back to inequality.
func IsNewer(release, installed string) bool {
	if cmp, ok := CompareVersions(release, installed); ok {
		return cmp > 0
	}
	return NormalizeVersion(release) != NormalizeVersion(installed)
}
