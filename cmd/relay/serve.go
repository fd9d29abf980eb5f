package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/config"
	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/aman-churiwal/crm-relay/internal/refresher"
	"github.com/aman-churiwal/crm-relay/internal/server"
	"github.com/spf13/cobra"
)

var withRefresher bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the public request gateway",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&withRefresher, "with-refresher", false, "also run the token refresher in this process")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateGateway(); err != nil {
		return err
	}
	if withRefresher {
		if err := cfg.ValidateRefresher(); err != nil {
			return err
		}
	}

	conns, err := connect(cfg)
	if err != nil {
		return err
	}
	defer conns.Close()

	m := metrics.NewMetrics("relay")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var r *refresher.Refresher
	refresherDone := make(chan struct{})
	if withRefresher {
		r = newRefresher(cfg, conns, m)
		go func() {
			defer close(refresherDone)
			r.Run(ctx)
		}()
	} else {
		close(refresherDone)
	}

	srv := server.New(server.Options{
		Config:    cfg,
		Postgres:  conns.postgres,
		Redis:     conns.redis,
		Metrics:   m,
		Refresher: r,
	})

	serveErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Printf("Server failed: %v", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	<-refresherDone

	log.Println("Server exited")
	return nil
}
