package main

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/catalog"
)

func newSyncCatalogCmd(root *rootOptions) *cobra.Command {
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "sync-catalog",
		Short: "Pull branches, payment types and services from the POS",
		Long: `Runs a catalog sync in this process. With --enqueue the sync is queued
for the conversation worker through asynq instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger := root.load()

			if enqueue {
				if cfg.RedisAddr == "" {
					return fmt.Errorf("--enqueue needs REDIS_ADDR")
				}
				client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
				defer client.Close()
				id, err := catalog.Enqueue(ctx, client)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued catalog sync %s\n", id)
				return nil
			}

			infra, err := bootstrap.BuildInfra(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			started := time.Now()
			res, err := bootstrap.BuildCatalog(ctx, cfg, infra.Redis, infra.Pool, logger).Syncer.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d branches, %d payment types, %d services (pruned %d) in %s\n",
				res.Branches, res.PaymentTypes, res.Services, res.Pruned, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the sync for the worker instead of running it here")
	return cmd
}
