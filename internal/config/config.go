package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hatch-dev/hatch/internal/branding"
	"github.com/hatch-dev/hatch/internal/platform"
)

const (
	fileName = "config"
	fileType = "yaml"

	// DefaultTimeout bounds one whole update attempt.
	DefaultTimeout = 5 * time.Minute
)

// Keys understood by Resolve. Any of them can also be set through an
// environment variable, e.g. HATCH_WORK_DIR or HATCH_ASSETS_LINUX.
const (
	KeyOwner        = "owner"
	KeyRepo         = "repo"
	KeyAPIHost      = "api_host"
	KeyDownloadHost = "download_host"
	KeyUserAgent    = "user_agent"
	KeyToken        = "token"
	KeyWorkDir      = "work_dir"
	KeyStateFile    = "state_file"
	KeyTimeout      = "timeout"
	KeyProbeAddress = "probe_address"
	KeyLogLevel     = "log_level"
	KeyAssets       = "assets"
)

// Keys lists every settable key, with one assets.<platform> entry per
// platform known to branding.
func Keys() []string {
	keys := []string{
		KeyOwner, KeyRepo, KeyAPIHost, KeyDownloadHost, KeyUserAgent, KeyToken,
		KeyWorkDir, KeyStateFile, KeyTimeout, KeyProbeAddress, KeyLogLevel,
	}
	for name := range branding.Assets() {
		keys = append(keys, KeyAssets+"."+name)
	}
	slices.Sort(keys)
	return keys
}

// IsKey reports whether key is one of Keys.
func IsKey(key string) bool {
	return slices.Contains(Keys(), key)
}

// Settings is the resolved, immutable configuration for one invocation.
type Settings struct {
	Owner        string
	Repo         string
	APIHost      string
	DownloadHost string
	UserAgent    string
	Token        string
	WorkDir      string
	StateFile    string
	Timeout      time.Duration
	ProbeAddress string
	LogLevel     string
	Assets       platform.AssetMap
}

// Dir returns the path to the hatch config directory (~/.hatch/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.hatch/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment.
func Load() {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	// Ignore error if config file doesn't exist yet.
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault(KeyOwner, branding.GitHubOwner())
	viper.SetDefault(KeyRepo, branding.GitHubRepo())
	viper.SetDefault(KeyAPIHost, branding.APIHost())
	viper.SetDefault(KeyDownloadHost, branding.DownloadHost())
	viper.SetDefault(KeyUserAgent, branding.UserAgent())
	viper.SetDefault(KeyWorkDir, ".")
	viper.SetDefault(KeyStateFile, "version.toml")
	viper.SetDefault(KeyTimeout, DefaultTimeout)
	viper.SetDefault(KeyLogLevel, "info")
	for name, suffix := range branding.Assets() {
		viper.SetDefault(KeyAssets+"."+name, suffix)
	}
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Resolve reads the loaded configuration into Settings. The GitHub-style
// GITHUB_TOKEN variable is honored when no token is configured.
func Resolve() (Settings, error) {
	s := Settings{
		Owner:        strings.TrimSpace(viper.GetString(KeyOwner)),
		Repo:         strings.TrimSpace(viper.GetString(KeyRepo)),
		APIHost:      viper.GetString(KeyAPIHost),
		DownloadHost: viper.GetString(KeyDownloadHost),
		UserAgent:    viper.GetString(KeyUserAgent),
		Token:        viper.GetString(KeyToken),
		WorkDir:      viper.GetString(KeyWorkDir),
		StateFile:    viper.GetString(KeyStateFile),
		Timeout:      viper.GetDuration(KeyTimeout),
		ProbeAddress: viper.GetString(KeyProbeAddress),
		LogLevel:     viper.GetString(KeyLogLevel),
		Assets:       platform.AssetMap{},
	}
	if s.Token == "" {
		s.Token = os.Getenv("GITHUB_TOKEN")
	}

	if s.Owner == "" || s.Repo == "" {
		return Settings{}, fmt.Errorf("%s and %s must be set", KeyOwner, KeyRepo)
	}
	if s.Timeout <= 0 {
		return Settings{}, fmt.Errorf("%s must be a positive duration, got %q", KeyTimeout, viper.GetString(KeyTimeout))
	}
	if s.UserAgent == "" {
		return Settings{}, fmt.Errorf("%s must not be empty", KeyUserAgent)
	}

	for name := range branding.Assets() {
		suffix := viper.GetString(KeyAssets + "." + name)
		if suffix == "" {
			continue
		}
		kind, err := platform.ParseKind(name)
		if err != nil {
			return Settings{}, fmt.Errorf("%s.%s: %w", KeyAssets, name, err)
		}
		s.Assets[kind] = suffix
	}
	return s, nil
}
