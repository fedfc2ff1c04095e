package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hatch-dev/hatch/internal/branding"
)

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Restore the build replaced by the last update",
	Long: `Moves version-cache/last back over the running executable and restores the
version record that belonged to it. Only one previous build is kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return &ExitError{Code: exitUserCorrectable, Err: fmt.Errorf("loading config: %w", err)}
		}
		u, err := buildUpdater(s, newLogger(cmd.ErrOrStderr(), s), cmd.ErrOrStderr())
		if err != nil {
			return &ExitError{Code: exitUserCorrectable, Err: err}
		}

		res, err := u.Rollback()
		if err != nil {
			return updateExitError(u, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Rolled back %s -> %s", res.Previous.Label, res.Current.Label)))
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s to reinstall the latest release.\n", CmdStyle.Render(branding.CLIName()+" update"))
		return nil
	},
}
