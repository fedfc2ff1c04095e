package updater

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Change describes how a remote release relates to the installed one. It is
// only used for display; whether to update is decided by release id alone.
type Change string

const (
	ChangeInstall   Change = "install"
	ChangeUpgrade   Change = "upgrade"
	ChangeDowngrade Change = "downgrade"
	ChangeReinstall Change = "reinstall"
	ChangeUnknown   Change = "unknown"
)

// CompareVersions compares two version strings using semver.
// Returns -1 if current < latest, 0 if equal, 1 if current > latest.
// Handles "v" prefix tolerance (strips leading "v" before parsing).
func CompareVersions(current, latest string) (int, error) {
	cv, err := parseSemver(current)
	if err != nil {
		return 0, fmt.Errorf("parsing current version %q: %w", current, err)
	}
	lv, err := parseSemver(latest)
	if err != nil {
		return 0, fmt.Errorf("parsing latest version %q: %w", latest, err)
	}
	return cv.Compare(lv), nil
}

// DescribeChange classifies moving from the installed record to remoteTag.
// Labels that are not semver (including "unset") yield ChangeUnknown unless
// nothing is installed yet.
func DescribeChange(local VersionRecord, remoteTag string) Change {
	if !local.Installed() {
		return ChangeInstall
	}
	cmp, err := CompareVersions(local.Label, remoteTag)
	if err != nil {
		return ChangeUnknown
	}
	switch {
	case cmp < 0:
		return ChangeUpgrade
	case cmp > 0:
		return ChangeDowngrade
	default:
		return ChangeReinstall
	}
}

// parseSemver strips a leading "v" and parses the version string.
func parseSemver(version string) (*semver.Version, error) {
	version = strings.TrimPrefix(version, "v")
	return semver.NewVersion(version)
}
