// Package config manages user-level settings stored at ~/.hatch/config.yaml.
// Values can be overridden with HATCH_* environment variables and default to
// the identity baked in by the branding package. Resolve turns them into the
// Settings used to build an updater.
package config
