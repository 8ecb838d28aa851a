package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/inboxsync/internal/app"
	"github.com/lu-zhengda/inboxsync/internal/server"
)

func newSyncCmd() *cobra.Command {
	var accountFlag string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync for an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			accountID, err := resolveAccountID(ctx, e.db, accountFlag)
			if err != nil {
				return err
			}

			if !jsonFlag {
				fmt.Printf("Syncing account %s...\n", accountID)
			}
			sum, err := e.syncService().Run(ctx, accountID)
			if err != nil {
				if jsonFlag && sum != nil {
					writeJSON(cmd.OutOrStdout(), toJSONSummary(sum))
				}
				return fmt.Errorf("sync failed (%s): %w", app.KindOf(err), err)
			}

			if jsonFlag {
				return writeJSON(cmd.OutOrStdout(), toJSONSummary(sum))
			}

			fmt.Printf("Synchronized %d emails (%d skipped) in %s.\n",
				sum.Written, sum.Skipped, sum.Duration().Round(time.Millisecond))
			for _, s := range sum.Skips {
				fmt.Printf("  skipped %s at %s: %s\n", s.ProviderID, s.Stage, s.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "account ID to sync (defaults to the only linked account)")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /sync over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(true)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(e.syncService(), e.db, e.logger.With().Str("component", "server").Logger())
			return srv.ListenAndServe(ctx, e.cfg.Server)
		},
	}
}
