package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aman-churiwal/crm-relay/internal/config"
	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/spf13/cobra"
)

var refreshOnce bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the token refresher loop",
	RunE:  runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshOnce, "once", false, "run a single refresh cycle and exit")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateRefresher(); err != nil {
		return err
	}

	conns, err := connect(cfg)
	if err != nil {
		return err
	}
	defer conns.Close()

	r := newRefresher(cfg, conns, metrics.NewMetrics("relay"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if refreshOnce {
		token, err := r.RefreshCycle(ctx)
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		log.Printf("Refresh succeeded, access token expires %v", token.Expiry)
		return nil
	}

	r.Run(ctx)
	return nil
}
