package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hatch-dev/hatch/internal/branding"
	"github.com/hatch-dev/hatch/internal/config"
	"github.com/hatch-dev/hatch/internal/platform"
	"github.com/hatch-dev/hatch/internal/updater"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: TitleStyle.Render(branding.DisplayName()) + SubtitleStyle.Render(" - "+branding.Description()) + `

Run without arguments to print the greeting. The binary keeps itself current
from its release host:

  ` + branding.CLIName() + ` update            download and install the latest release
  ` + branding.CLIName() + ` update --check    report whether an update is available
  ` + branding.CLIName() + ` rollback          go back to the previously installed build`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		greet(cmd.OutOrStdout())

		// Non-blocking banner from cached version check.
		s, err := loadSettings()
		if err != nil {
			return nil
		}
		u, err := buildUpdater(s, newLogger(io.Discard, s), io.Discard)
		if err != nil {
			return nil
		}
		u.CheckAndPrintBanner(cmd.ErrOrStderr(), branding.CLIName(), config.Dir())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	// fang overrides rootCmd.Version, so the string goes through WithVersion.
	return fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
}

func greet(w io.Writer) {
	header := fmt.Sprintf("%s %s", branding.DisplayName(), buildVersion)
	fmt.Fprintln(w, TitleStyle.Render(header))
	fmt.Fprintln(w, SubtitleStyle.Render("-------------------"))
	fmt.Fprintln(w, "> Hello, world!")
}

func loadSettings() (config.Settings, error) {
	config.Load()
	return config.Resolve()
}

// newLogger builds the process logger. --verbose wins over log_level.
func newLogger(w io.Writer, s config.Settings) *log.Logger {
	level := log.InfoLevel
	if parsed, err := log.ParseLevel(s.LogLevel); err == nil {
		level = parsed
	}
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: branding.CLIName(),
		Level:  level,
	})
}

// buildUpdater wires the updater components from resolved settings for the
// platform this binary runs on.
func buildUpdater(s config.Settings, logger *log.Logger, progress io.Writer, opts ...updater.Option) (*updater.Updater, error) {
	resolver := updater.NewResolver(
		updater.WithAPIHost(s.APIHost),
		updater.WithDownloadHost(s.DownloadHost),
		updater.WithUserAgent(s.UserAgent),
		updater.WithToken(s.Token),
	)
	fetcher := updater.NewFetcher(s.WorkDir,
		updater.WithFetcherUserAgent(s.UserAgent),
		updater.WithProgress(progress),
		updater.WithFetcherLogger(logger),
	)

	base := []updater.Option{
		updater.WithResolver(resolver),
		updater.WithFetcher(fetcher),
		updater.WithLogger(logger),
	}
	if s.ProbeAddress != "" {
		base = append(base, updater.WithProber(&updater.DialProber{
			Address: s.ProbeAddress,
			Timeout: updater.DefaultProbeTimeout,
		}))
	}

	return updater.New(updater.Config{
		Owner:     s.Owner,
		Repo:      s.Repo,
		Assets:    s.Assets,
		Platform:  platform.Current(),
		WorkDir:   s.WorkDir,
		StateFile: s.StateFile,
	}, append(base, opts...)...)
}
