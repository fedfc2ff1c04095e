// Package branding provides compile-time identity values for the CLI.
//
// Forkers edit branding.yaml in this package before building. Go's
// //go:embed bakes it into the binary, so the release owner, repository and
// per-platform asset names travel with the executable that updates itself.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName      string            `yaml:"cli_name"`
	DisplayName  string            `yaml:"display_name"`
	Description  string            `yaml:"description"`
	HomeDir      string            `yaml:"home_dir"`
	EnvPrefix    string            `yaml:"env_prefix"`
	GoModule     string            `yaml:"go_module"`
	GitHubOwner  string            `yaml:"github_owner"`
	GitHubRepo   string            `yaml:"github_repo"`
	UserAgent    string            `yaml:"user_agent"`
	APIHost      string            `yaml:"api_host"`
	DownloadHost string            `yaml:"download_host"`
	Assets       map[string]string `yaml:"assets"`
}

func load() {
	once.Do(func() {
		// Set hard defaults in case the embedded file is missing/empty.
		defaults = brand{
			CLIName:      "hatch",
			DisplayName:  "Hatch",
			Description:  "Self-updating single-binary greeter",
			HomeDir:      ".hatch",
			EnvPrefix:    "HATCH",
			GoModule:     "github.com/hatch-dev/hatch",
			GitHubOwner:  "hatch-dev",
			GitHubRepo:   "hatch",
			UserAgent:    "hatch-updater",
			APIHost:      "https://api.github.com",
			DownloadHost: "https://github.com",
			Assets: map[string]string{
				"windows": "x86_64-pc-windows-gnu.zip",
				"linux":   "x86_64-unknown-linux-musl.zip",
				"macos":   "x86_64-apple-darwin.zip",
			},
		}
		// Overlay with embedded YAML values.
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "hatch").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name (e.g., "Hatch").
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".hatch").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "HATCH").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// GoModule returns the Go module path. Not consumed at runtime.
func GoModule() string { load(); return defaults.GoModule }

// GitHubOwner returns the owner of the release repository.
func GitHubOwner() string { load(); return defaults.GitHubOwner }

// GitHubRepo returns the release repository name. It doubles as the archive
// name prefix: {repo}_{tag}_{suffix}.
func GitHubRepo() string { load(); return defaults.GitHubRepo }

// UserAgent returns the identifying header sent to the release host.
func UserAgent() string { load(); return defaults.UserAgent }

// APIHost returns the release metadata API base URL.
func APIHost() string { load(); return defaults.APIHost }

// DownloadHost returns the base URL release assets are downloaded from.
func DownloadHost() string { load(); return defaults.DownloadHost }

// Assets returns a copy of the default per-platform archive suffixes, keyed by
// platform name ("windows", "linux", "macos").
func Assets() map[string]string {
	load()
	out := make(map[string]string, len(defaults.Assets))
	for k, v := range defaults.Assets {
		out[k] = v
	}
	return out
}

// EnvVar returns a fully qualified env var name, e.g., EnvVar("HOME") → "HATCH_HOME".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
