package app

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	colsync "github.com/studykit/colsync/internal/app"
)

func newLoginCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session key in the system keyring",
		Long: `Log in to the sync server. The password is read from standard input when
--password-stdin is given, otherwise from account.passwordFile or the
COLSYNC_PASSWORD environment variable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}

			username, _ := cmd.Flags().GetString("username")
			if username == "" {
				username = cfg.Account.Username
			}
			if username == "" {
				return errors.New("a username is required (--username or account.username)")
			}

			var password string
			if fromStdin, _ := cmd.Flags().GetBool("password-stdin"); fromStdin {
				password, err = readPassword(cmd)
			} else {
				password, err = cfg.Account.GetPassword()
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := colsync.NewClientApp(ctx, colsync.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer closeClient(ctx, client)

			out, err := client.Login(ctx, username, password, progressListener(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			if !out.Succeeded() {
				return outcomeError(out)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.UserMessage())
			return err
		},
	}
	cmd.Flags().StringP("username", "u", "", "Account username")
	cmd.Flags().Bool("password-stdin", false, "Read the password from standard input")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client, err := colsync.NewClientApp(ctx, colsync.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer closeClient(ctx, client)

			if err := client.Logout(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged out of profile %s\n", cfg.GetProfile())
			return err
		},
	}
}

func readPassword(cmd *cobra.Command) (string, error) {
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		if err != nil {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return "", errors.New("password from stdin is empty")
	}
	return password, nil
}
