package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	colsync "github.com/studykit/colsync/internal/app"
	"github.com/studykit/colsync/internal/config"
	"github.com/studykit/colsync/internal/telemetry"
)

const defaultGracefulTimeout = 30 * time.Second

func newDevServerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev-server",
		Short: "Run a local sync server for development and testing",
		Long: `Start a self-contained sync server. Accounts come from devServer.users in the
configuration file; every account gets its own collection under devServer.dataDir.
Point a client at it with server.endpoint: http://<addr>/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			address, _ := cmd.Flags().GetString("addr")
			users, _ := cmd.Flags().GetStringArray("user")
			if err := addUsers(&cfg.DevServer, users); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tel, err := telemetry.New(ctx, cfg.Telemetry)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
				defer cancel()
				if err := tel.Shutdown(shutdownCtx); err != nil {
					slog.Warn("Failed to flush telemetry", "error", err)
				}
			}()

			opts := []colsync.DevServerAppOptions{
				colsync.WithServerConfig(cfg),
				colsync.WithServerTelemetry(tel),
			}
			if address != "" {
				opts = append(opts, colsync.WithAddress(address))
			}
			server, err := colsync.NewDevServerApp(ctx, opts...)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(server.Start)
			g.Go(func() error {
				<-gctx.Done()
				return server.Stop(defaultGracefulTimeout)
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "Address to listen on (default devServer.addr)")
	cmd.Flags().StringArray("user", nil, "Account as username:password, may be repeated")
	return cmd
}

// addUsers merges username:password pairs into the configured accounts
func addUsers(c *config.DevServerConfig, pairs []string) error {
	for _, pair := range pairs {
		name, password, ok := strings.Cut(pair, ":")
		if !ok || name == "" || password == "" || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("invalid --user %q (expected username:password)", pair)
		}
		if c.Users == nil {
			c.Users = map[string]string{}
		}
		c.Users[name] = password
	}
	return nil
}
