// Package updater implements the self-update engine for the hatch binary.
// It records the installed release in a TOML state file, checks the release
// host for the latest build, downloads and unpacks its zip archive into a
// staging area, and replaces the running executable with two renames while
// keeping the previous build as a rollback copy. A daily-cached version check
// powers the startup banner.
package updater
