package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	colsync "github.com/studykit/colsync/internal/app"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync/coordinator"
)

func newWatchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the collection in sync in the foreground",
		Long: `Run automatic syncs until interrupted. A sync starts whenever sync.autoInterval
has passed since the last successful one. Profiles that need a full sync are
skipped until colsync sync --upload or --download is run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			polling, _ := cmd.Flags().GetDuration("poll")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := colsync.NewClientApp(ctx, colsync.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer closeClient(ctx, client)

			coord := coordinator.New(client,
				status.NewFileStatusPersistence(cfg.StatusDir()),
				cfg.GetProfile(),
				cfg.AutoSyncInterval(),
				coordinator.WithPollingInterval(polling),
			)
			err = coord.Start(ctx)
			if errors.Is(err, coordinator.ErrLoggedOut) {
				return &exitError{code: exitAuth, err: fmt.Errorf("profile %s is not logged in; run colsync login", cfg.GetProfile())}
			}
			return err
		},
	}
	cmd.Flags().Duration("poll", coordinator.DefaultPollingInterval, "How often to check whether a sync is due")
	return cmd
}
