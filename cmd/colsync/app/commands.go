// Package app provides the entry point for the colsync application.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studykit/colsync/internal/config"
	"github.com/studykit/colsync/internal/versions"
)

// Exit codes of a failed command
const (
	exitFailure  = 1
	exitConflict = 2
	exitAuth     = 3
	exitNetwork  = 4
)

// exitError carries the process exit code of a failed command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// ExitCode returns the process exit code for an error returned by the root command
func ExitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

// cli holds the flag values shared by every subcommand
type cli struct {
	v *viper.Viper

	closeLog func() error
}

// NewRootCmd creates a new root command for colsync.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix(config.EnvPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:               "colsync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Synchronize a flashcard collection with a sync server",
		Long: `colsync keeps a local flashcard collection and its media folder in sync with a
remote sync server. It logs in once, stores the session key in the system keyring
and then runs incremental, full or media syncs on demand.`,
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c.closeLog != nil {
				return c.closeLog()
			}
			return nil
		},
	}

	// Add persistent flags
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to configuration file (YAML format)")
	flags.String("data-dir", "", "Directory holding collections and sync status")
	flags.String("profile", "", "Profile to use (overrides the configuration file)")
	flags.Bool("debug", false, "Enable debug logging")
	for _, name := range []string{"config", "data-dir", "profile", "debug"} {
		if err := c.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd(c))
	rootCmd.AddCommand(newLogoutCmd(c))
	rootCmd.AddCommand(newSyncCmd(c))
	rootCmd.AddCommand(newStatusCmd(c))
	rootCmd.AddCommand(newCheckCmd(c))
	rootCmd.AddCommand(newWatchCmd(c))
	rootCmd.AddCommand(newDevServerCmd(c))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads the configuration selected by the persistent flags and
// applies its logging section
func (c *cli) loadConfig() (*config.Config, error) {
	var opts []config.Option
	if path := c.v.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	if dir := c.v.GetString("data-dir"); dir != "" {
		opts = append(opts, config.WithDataDir(dir))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if profile := c.v.GetString("profile"); profile != "" {
		cfg.Profile = profile
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	c.closeLog = configureLogging(cfg.Logging, c.v.GetBool("debug"))
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("error retrieving format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("error formatting version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "colsync %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
