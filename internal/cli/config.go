package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hatch-dev/hatch/internal/branding"
	"github.com/hatch-dev/hatch/internal/config"
)

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage updater settings",
	Long: `Read and write ` + branding.CLIName() + ` settings stored in the config file
(see "` + branding.CLIName() + ` config path").

Every key can be overridden with a ` + branding.EnvPrefix() + `_ environment variable,
e.g. ` + branding.EnvPrefix() + `_WORK_DIR or ` + branding.EnvPrefix() + `_ASSETS_LINUX. Run
"` + branding.CLIName() + ` config list" for all keys.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConfigValue(cmd.OutOrStdout(), args[0], args[1])
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if err := checkConfigKey(key); err != nil {
			return err
		}
		config.Load()
		fmt.Fprintln(cmd.OutOrStdout(), displayValue(key, config.Get(key)))
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key with its effective value",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		out := cmd.OutOrStdout()
		for _, key := range config.Keys() {
			fmt.Fprintf(out, "%-16s %s\n", key, displayValue(key, config.Get(key)))
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.FilePath())
		return nil
	},
}

func setConfigValue(out io.Writer, key, value string) error {
	if err := checkConfigKey(key); err != nil {
		return err
	}
	config.Load()
	if err := config.Set(key, value); err != nil {
		return fmt.Errorf("setting config key %q: %w", key, err)
	}
	// Catch values Resolve would reject before the next update trips on them.
	if _, err := config.Resolve(); err != nil {
		fmt.Fprintln(out, WarningStyle.Render("Warning: "+err.Error()))
	}
	fmt.Fprintf(out, "Set %s = %s\n", key, displayValue(key, value))
	return nil
}

func checkConfigKey(key string) error {
	if config.IsKey(key) {
		return nil
	}
	return &ExitError{
		Code: exitUserCorrectable,
		Err:  fmt.Errorf("unknown config key %q", key),
		Hint: "Valid keys: " + strings.Join(config.Keys(), ", "),
	}
}

// displayValue hides the token so it does not end up in terminal scrollback.
func displayValue(key, value string) string {
	if key == config.KeyToken && value != "" {
		return "********"
	}
	return value
}
