package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	colsync "github.com/studykit/colsync/internal/app"
	"github.com/studykit/colsync/internal/credentials"
	"github.com/studykit/colsync/internal/status"
	"github.com/studykit/colsync/internal/sync"
	"github.com/studykit/colsync/internal/sync/orchestrator"
)

const closeTimeout = 30 * time.Second

func newSyncCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the collection with the server",
		Long: `Run one sync job. Without --upload or --download an incremental sync is
attempted; when the server reports that only a full sync can proceed the
sync.onConflict direction is used, or the command exits with status 2.

Press Ctrl-C to cancel. A job that is already replacing one side of the
collection finishes first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts, err := syncOptions(cmd, cfg.Sync.Media)
			if err != nil {
				return err
			}
			if onConflict, _ := cmd.Flags().GetString("on-conflict"); onConflict != "" {
				if _, err := sync.ParseResolution(onConflict); err != nil {
					return err
				}
				cfg.Sync.OnConflict = onConflict
			}

			ctx := cmd.Context()
			client, err := colsync.NewClientApp(ctx, colsync.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer closeClient(ctx, client)

			stop := cancelOnInterrupt(client)
			defer stop()

			out, err := client.Sync(ctx, opts, progressListener(cmd.ErrOrStderr()))
			switch {
			case errors.Is(err, colsync.ErrSyncNotDue):
				_, err = fmt.Fprintln(cmd.OutOrStdout(), err.Error())
				return err
			case errors.Is(err, credentials.ErrNotLoggedIn):
				return &exitError{code: exitAuth, err: fmt.Errorf("profile %s is not logged in; run colsync login", cfg.GetProfile())}
			case err != nil:
				return err
			}

			if !out.Succeeded() {
				return outcomeError(out)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.UserMessage())
			return err
		},
	}
	cmd.Flags().Bool("media", false, "Also sync the media folder (default from sync.media)")
	cmd.Flags().Bool("upload", false, "Replace the server collection with the local one")
	cmd.Flags().Bool("download", false, "Replace the local collection with the server one")
	cmd.Flags().String("on-conflict", "", "Full sync direction when the collections cannot be merged (upload or download)")
	cmd.Flags().Bool("auto", false, "Skip the sync when the last one is more recent than sync.autoInterval")
	cmd.Flags().Bool("allow-offline", false, "Skip the connectivity pre-check")
	cmd.MarkFlagsMutuallyExclusive("upload", "download")
	return cmd
}

func syncOptions(cmd *cobra.Command, mediaDefault bool) (colsync.SyncOptions, error) {
	flags := cmd.Flags()
	opts := colsync.SyncOptions{Media: mediaDefault}

	if flags.Changed("media") {
		media, err := flags.GetBool("media")
		if err != nil {
			return opts, err
		}
		opts.Media = media
	}
	if upload, _ := flags.GetBool("upload"); upload {
		opts.Resolution = sync.ResolutionFullUpload
	}
	if download, _ := flags.GetBool("download"); download {
		opts.Resolution = sync.ResolutionFullDownload
	}
	opts.Automatic, _ = flags.GetBool("auto")
	opts.AllowOffline, _ = flags.GetBool("allow-offline")
	return opts, nil
}

// cancelOnInterrupt turns SIGINT and SIGTERM into a job cancellation request
func cancelOnInterrupt(client *colsync.ClientApp) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			select {
			case <-sigCh:
				if client.Cancel() {
					slog.Info("Cancelling sync...")
				} else {
					slog.Warn("The sync cannot be cancelled at this stage")
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the result of the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			st, err := status.NewFileStatusPersistence(cfg.StatusDir()).LoadStatus(cmd.Context(), cfg.GetProfile())
			if err != nil {
				return err
			}

			format, _ := cmd.Flags().GetString("format")
			if format == "json" {
				output, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					return fmt.Errorf("error formatting status as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			return printStatus(cmd.OutOrStdout(), cfg.GetProfile(), st)
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}

func printStatus(w io.Writer, profile string, st *status.SyncStatus) error {
	if st.Phase == "" {
		_, err := fmt.Fprintf(w, "Profile %s has never been synced\n", profile)
		return err
	}
	lines := []string{
		fmt.Sprintf("Profile:   %s", profile),
		fmt.Sprintf("Phase:     %s", st.Phase),
	}
	if st.LastOutcome != "" {
		lines = append(lines, fmt.Sprintf("Outcome:   %s", st.LastOutcome))
	}
	if st.Message != "" {
		lines = append(lines, fmt.Sprintf("Message:   %s", st.Message))
	}
	if st.LastSyncTime != nil {
		lines = append(lines, fmt.Sprintf("Last sync: %s", st.LastSyncTime.Format(time.RFC3339)))
	}
	if st.AttemptCount > 0 {
		lines = append(lines, fmt.Sprintf("Attempts:  %d since last success", st.AttemptCount))
	}
	if st.FullSyncRequired {
		lines = append(lines, "A full sync is required: run colsync sync --upload or --download")
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the integrity of the local collection",
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

			if err := client.Check(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Collection %s is intact\n", cfg.CollectionPath())
			return err
		},
	}
}

// progressListener prints job progress to w
func progressListener(w io.Writer) orchestrator.Listener {
	return orchestrator.ListenerFuncs{
		Progress: func(p sync.Progress) {
			switch {
			case p.Message != "":
				_, _ = fmt.Fprintf(w, "%s: %s\n", p.Phase, p.Message)
			case p.Uploaded > 0 || p.Downloaded > 0:
				_, _ = fmt.Fprintf(w, "%s: %d up, %d down\n", p.Phase, p.Uploaded, p.Downloaded)
			default:
				_, _ = fmt.Fprintf(w, "%s\n", p.Phase)
			}
		},
		Disconnected: func() {
			_, _ = fmt.Fprintln(w, "No network connection")
		},
	}
}

// outcomeError converts a failed outcome into an error with a matching exit code
func outcomeError(out sync.Outcome) error {
	code := exitFailure
	switch {
	case out.Kind == sync.OutcomeConflictRequiresFullSync, out.Kind == sync.OutcomeSchemaInvalidated:
		code = exitConflict
	case out.Kind == sync.OutcomeServerRejected && out.Reason == sync.ReasonBadAuth:
		code = exitAuth
	case out.Kind == sync.OutcomeNetworkError:
		code = exitNetwork
	}
	return &exitError{code: code, err: errors.New(out.UserMessage())}
}

func closeClient(ctx context.Context, client *colsync.ClientApp) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := client.Close(closeCtx); err != nil {
		slog.Warn("Failed to shut down cleanly", "error", err)
	}
}
