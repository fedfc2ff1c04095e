package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hatch-dev/hatch/internal/branding"
	"github.com/hatch-dev/hatch/internal/config"
	"github.com/hatch-dev/hatch/internal/updater"
)

// Process exit codes for update failures.
const (
	exitUserCorrectable = 1
	exitFailure         = 2
	exitSwapIncomplete  = 3
)

var (
	updateCheck bool
	updateYes   bool
)

func init() {
	updateCmd.Flags().BoolVar(&updateCheck, "check", false, "Only check for updates, don't install")
	updateCmd.Flags().BoolVarP(&updateYes, "yes", "y", false, "Continue with the installed build without asking when offline")

	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"self-update"},
	Short:   "Update " + branding.CLIName() + " to the latest release",
	Long: `Checks the release host for the latest build and, when its release id
differs from the installed one, downloads the archive for this platform and
replaces the running executable. The previous executable is kept in
version-cache/last until the next update.

  ` + branding.CLIName() + ` update              # update to latest
  ` + branding.CLIName() + ` update --check      # check only`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return &ExitError{Code: exitUserCorrectable, Err: fmt.Errorf("loading config: %w", err)}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), s.Timeout)
		defer cancel()

		p := updateParams{
			stdout:    cmd.OutOrStdout(),
			stderr:    cmd.ErrOrStderr(),
			check:     updateCheck,
			configDir: config.Dir(),
		}
		decider := offlinePrompt(cmd.InOrStdin(), p.stderr, updateYes, stdinIsTerminal())
		p.updater, err = buildUpdater(s, newLogger(p.stderr, s), p.stderr,
			updater.WithOfflineDecider(decider),
			updater.WithObserver(progressObserver(p.stderr)),
		)
		if err != nil {
			return &ExitError{Code: exitUserCorrectable, Err: err}
		}

		if err := runUpdate(ctx, p); err != nil {
			return updateExitError(p.updater, err)
		}
		return nil
	},
}

// updateParams bundles the dependencies and flags for the update command so
// runUpdate can be tested without a Cobra command.
type updateParams struct {
	stdout    io.Writer
	stderr    io.Writer
	updater   *updater.Updater
	check     bool
	configDir string
}

func runUpdate(ctx context.Context, p updateParams) error {
	if p.check {
		res, err := p.updater.Check(ctx)
		if err != nil {
			return err
		}
		saveCache(p.configDir, res)
		printCheck(p.stdout, res)
		return nil
	}

	res, err := p.updater.Run(ctx)
	if err != nil {
		return err
	}

	switch res.State {
	case updater.StateUpToDate:
		saveCache(p.configDir, res)
		fmt.Fprintf(p.stdout, "You are on the latest release (%s)\n", res.Current.Label)
	case updater.StateOffline:
		fmt.Fprintln(p.stdout, WarningStyle.Render(fmt.Sprintf("Offline: continuing with %s", res.Current.Label)))
	case updater.StateCommitted:
		saveCache(p.configDir, res)
		fmt.Fprintln(p.stdout, SuccessStyle.Render(fmt.Sprintf("Successfully updated %s -> %s", res.Previous.Label, res.Current.Label)))
		fmt.Fprintf(p.stdout, "Run %s to go back.\n", CmdStyle.Render(branding.CLIName()+" rollback"))
	}
	return nil
}

func printCheck(w io.Writer, res *updater.Result) {
	fmt.Fprintf(w, "Installed: %s (#%d)\n", res.Current.Label, res.Current.ID)
	if res.Release == nil {
		fmt.Fprintln(w, WarningStyle.Render("Offline: latest release unknown"))
		return
	}
	fmt.Fprintf(w, "Latest:    %s (#%d)\n", res.Release.Tag, res.Release.RemoteID)
	if res.Unavailable != nil {
		fmt.Fprintln(w, "\n"+WarningStyle.Render(fmt.Sprintf("%s cannot be installed on this platform: %v", res.Release.Tag, res.Unavailable)))
		return
	}
	if res.UpdateAvailable {
		fmt.Fprintf(w, "\nUpdate available (%s). Run %s to install.\n", res.Change, CmdStyle.Render(branding.CLIName()+" update"))
		return
	}
	fmt.Fprintln(w, "\nYou are on the latest release.")
}

func saveCache(configDir string, res *updater.Result) {
	if configDir == "" || res.Release == nil {
		return
	}
	// Silently ignore save errors.
	_ = updater.SaveCache(configDir, updater.CacheFromResult(res))
}

// offlinePrompt asks on out whether to keep running the installed build when
// the release host is unreachable. EOF counts as no, and without a terminal
// only --yes can continue.
func offlinePrompt(in io.Reader, out io.Writer, assumeYes, interactive bool) updater.OfflineDecider {
	return func(_ context.Context, local updater.VersionRecord) (bool, error) {
		fmt.Fprintln(out, WarningStyle.Render("Unable to reach the release host."))
		if assumeYes {
			return true, nil
		}
		if !interactive {
			fmt.Fprintln(out, "No terminal to confirm on; pass --yes to continue offline.")
			return false, nil
		}
		fmt.Fprintf(out, "Continue with installed %s? [y/N] ", local.Label)

		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func progressObserver(w io.Writer) func(updater.State) {
	return func(s updater.State) {
		switch s {
		case updater.StateResolvingRelease:
			fmt.Fprintln(w, "Checking for updates...")
		case updater.StateDownloading:
			fmt.Fprintln(w, "Downloading...")
		case updater.StateSwapping:
			fmt.Fprintln(w, "Installing...")
		}
	}
}

// updateExitError maps a failure to an exit code and attaches remediation.
func updateExitError(u *updater.Updater, err error) *ExitError {
	return &ExitError{Code: classifyUpdateExitCode(err), Err: err, Hint: updateHint(u, err)}
}

func classifyUpdateExitCode(err error) int {
	switch updater.KindOf(err) {
	case updater.KindSwapIncomplete:
		return exitSwapIncomplete
	case updater.KindUserAborted, updater.KindLockHeld, updater.KindConfigCorrupt,
		updater.KindUnsupportedPlatform, updater.KindInitialInstallRequiresNetwork:
		return exitUserCorrectable
	}
	if errors.Is(err, os.ErrPermission) {
		return exitUserCorrectable
	}
	return exitFailure
}

func updateHint(u *updater.Updater, err error) string {
	switch updater.KindOf(err) {
	case updater.KindSwapIncomplete:
		target := u.Config().ExecutablePath
		return fmt.Sprintf("The executable at %s is missing. Restore the previous build manually:\n  %s",
			target, CmdStyle.Render(restoreCommand(u.Swapper().RollbackPath(), target)))
	case updater.KindRemoteUnavailable:
		return "Check your network connection and try again.\nIf you are rate limited, set GITHUB_TOKEN for authenticated access."
	case updater.KindInitialInstallRequiresNetwork:
		return "The first install needs network access. Connect and retry."
	case updater.KindLockHeld:
		return "Wait for the other update to finish."
	case updater.KindConfigCorrupt:
		return fmt.Sprintf("Fix or delete %s and retry.", u.Store().Path())
	}
	if errors.Is(err, os.ErrPermission) {
		return "Insufficient permissions to replace the executable. Retry with elevated privileges."
	}
	return ""
}

func restoreCommand(from, to string) string {
	if os.PathSeparator == '\\' {
		return fmt.Sprintf("move %q %q", from, to)
	}
	return fmt.Sprintf("mv %q %q", from, to)
}
