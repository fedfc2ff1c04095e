// Package cli defines the Cobra command tree for the hatch CLI. Each file
// registers one top-level command with the root command. Commands resolve
// settings through the config package, delegate to the updater package and
// only handle flags, output formatting and the offline prompt.
package cli
