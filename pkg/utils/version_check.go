package utils

import (
	"strings"

	"golang.org/x/mod/semver"
)

// RequiredServerVersion is the oldest server the client commands work with.
const RequiredServerVersion string = "v0.1.0"

// CheckServerVersion reports if toCheck is at least RequiredServerVersion.
// Development builds (prerelease "dev") are accepted.
func CheckServerVersion(toCheck string) bool {
	if !strings.HasPrefix(toCheck, "v") {
		toCheck = "v" + toCheck
	}
	if !semver.IsValid(toCheck) {
		return false
	}
	if semver.Prerelease(toCheck) == "-dev" {
		return true
	}
	return semver.Compare(toCheck, RequiredServerVersion) >= 0
}
