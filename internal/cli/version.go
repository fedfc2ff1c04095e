package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hatch-dev/hatch/internal/branding"
	"github.com/hatch-dev/hatch/internal/config"
	"github.com/hatch-dev/hatch/internal/updater"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	if buildVersion == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", buildVersion, buildCommit, buildDate)
}

// installedRecord reads the state file without creating it.
func installedRecord(s config.Settings) updater.VersionRecord {
	path := s.StateFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.WorkDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return updater.DefaultRecord()
	}
	rec, err := updater.NewVersionStore(path).Load()
	if err != nil {
		return updater.DefaultRecord()
	}
	return rec
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, buildVersion)
			return nil
		}

		// The installed release comes from the state file, not the build.
		installed := updater.DefaultRecord()
		if s, err := loadSettings(); err == nil {
			installed = installedRecord(s)
		}

		if versionJSON {
			info := map[string]any{
				"version":       buildVersion,
				"commit":        buildCommit,
				"date":          buildDate,
				"release_id":    installed.ID,
				"release_label": installed.Label,
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "%s version %s\n", branding.CLIName(), versionString())
		fmt.Fprintf(out, "installed release: %s\n", installed)
		return nil
	},
}
