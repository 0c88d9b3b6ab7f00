// Package version provides the SDK version reported to the device API and
// helpers to parse and compare it.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// SDK is the version of this library, sent as device metadata.
const SDK = "1.0.0"

// APIVersion is the device API path version the client speaks.
const APIVersion = "v1"

// SDKVersion represents a parsed "major.minor.patch" version.
type SDKVersion struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (SDKVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SDKVersion{}, fmt.Errorf("invalid version %q: expected major.minor.patch", s)
	}

	var nums [3]uint16
	for i, name := range []string{"major", "minor", "patch"} {
		n, err := strconv.ParseUint(parts[i], 10, 16)
		if err != nil || parts[i] == "" {
			return SDKVersion{}, fmt.Errorf("invalid version %q: bad %s component", s, name)
		}
		nums[i] = uint16(n)
	}

	return SDKVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Current returns the parsed SDK version.
func Current() SDKVersion {
	v, _ := Parse(SDK)
	return v
}

// String returns the version as "major.minor.patch".
func (v SDKVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible returns true if the other version has the same major version.
func (v SDKVersion) Compatible(other SDKVersion) bool {
	return v.Major == other.Major
}

// Less reports whether v precedes other.
func (v SDKVersion) Less(other SDKVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// OS returns the operating system name reported as device metadata.
func OS() string {
	return runtime.GOOS
}

// UserAgent returns the User-Agent sent with device API requests,
// e.g. "pushsync-go/1.0.0 (linux; amd64)".
func UserAgent() string {
	return fmt.Sprintf("pushsync-go/%s (%s; %s)", SDK, runtime.GOOS, runtime.GOARCH)
}
