package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/stake-plus/govcurator/src/actions"
	sharedconfig "github.com/stake-plus/govcurator/src/config"
	shareddata "github.com/stake-plus/govcurator/src/data"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and, when configured, the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(parent context.Context, opts *RootOptions) error {
	db, closeDB, err := opts.open()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := actions.Migrate(db); err != nil {
		return err
	}
	cfg := sharedconfig.LoadCuratorConfig(db)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = shareddata.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
	}

	manager, err := actions.StartAll(ctx, db, rdb, &cfg)
	if err != nil {
		return err
	}

	// Wait for termination
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigs:
		log.Printf("curator: received %v, shutting down", s)
	case <-ctx.Done():
	}

	manager.Stop(ctx)
	return nil
}
