package main

import (
	"fmt"
	"log"
	"os"

	"github.com/aman-churiwal/crm-relay/internal/config"
	"github.com/aman-churiwal/crm-relay/internal/crm"
	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/aman-churiwal/crm-relay/internal/refresher"
	"github.com/aman-churiwal/crm-relay/internal/repository"
	"github.com/aman-churiwal/crm-relay/internal/server"
	"github.com/aman-churiwal/crm-relay/internal/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "relay",
	Short:        "CRM booking relay",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the relay version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "relay %s\n", server.Version)
	},
}

func main() {
	// Load env if it exists
	godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "relay.yaml", "path to the optional YAML config file")
	rootCmd.AddCommand(serveCmd, refreshCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connections holds the stores both processes share.
type connections struct {
	postgres *storage.Postgres
	redis    *storage.RedisClient
}

func connect(cfg *config.Config) (*connections, error) {
	postgres, err := storage.NewPostgres(cfg.Database.URL, cfg.Server.Environment == "development")
	if err != nil {
		return nil, err
	}

	if err := postgres.AutoMigrate(); err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("Connected to database successfully")

	conns := &connections{postgres: postgres}

	if cfg.Redis.Enabled() {
		redis, err := storage.NewRedis(cfg.Redis.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			postgres.Close()
			return nil, err
		}
		conns.redis = redis
		log.Println("Connected to redis successfully")
	}

	return conns, nil
}

func (c *connections) Close() {
	if c.redis != nil {
		c.redis.Close()
	}
	c.postgres.Close()
}

func newRefresher(cfg *config.Config, conns *connections, m *metrics.Metrics) *refresher.Refresher {
	var locker refresher.Locker = refresher.NewLocalLocker()
	if conns.redis != nil {
		locker = refresher.NewRedisLocker(conns.redis)
	}

	client := crm.NewClient(crm.Options{
		BaseURL: cfg.CRM.BaseURL,
		Timeout: cfg.CRM.Timeout,
		Metrics: m,
	})

	return refresher.New(
		repository.NewAccountRepository(conns.postgres),
		client,
		locker,
		m,
		refresher.Config{
			LocationID: cfg.CRM.LocationID,
			Credentials: crm.Credentials{
				ClientID:     cfg.CRM.ClientID,
				ClientSecret: cfg.CRM.ClientSecret,
				UserType:     cfg.CRM.UserType,
			},
			Interval:      cfg.Refresh.Interval,
			RetryInterval: cfg.Refresh.RetryInterval,
			ExpirySkew:    cfg.Refresh.ExpirySkew,
			LockTTL:       cfg.Refresh.LockTTL,
		},
	)
}
