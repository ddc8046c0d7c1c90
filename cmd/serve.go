package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dhcgn/patent-reminders/api"
	"github.com/dhcgn/patent-reminders/stats"
	"github.com/dhcgn/patent-reminders/store"
)

var cleanupAfter time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve reminders, certificates, invoices and completion state over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		status, err := store.Open(e.cfg.StatusDB, e.logger)
		if err != nil {
			return err
		}
		defer status.Close()

		if cleanupAfter > 0 {
			n, err := status.CleanupCompleted(cmd.Context(), cleanupAfter)
			if err != nil {
				return err
			}
			e.logger.Info("old completion records removed", "count", n, "olderThan", cleanupAfter)
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		p, files, _, err := e.pipeline(status, stats.NewMetrics(reg))
		if err != nil {
			return err
		}

		server, err := api.NewServer(p, status, files, reg, e.logger, &api.Config{Listen: e.cfg.Listen})
		if err != nil {
			return fmt.Errorf("api.NewServer: %w", err)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().DurationVar(&cleanupAfter, "cleanup-after", 0, "Remove completion records older than this at startup (0 keeps all)")
	rootCmd.AddCommand(serveCmd)
}
