package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/messaging"
)

func newResetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <customer>",
		Short: "Clear a customer's conversation state and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger := root.load()

			client := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
			if client == nil {
				return fmt.Errorf("reset needs a reachable Redis; in-memory sessions end with their process")
			}
			defer client.Close()

			customerID := messaging.CustomerID(args[0])
			if customerID == "" {
				return fmt.Errorf("invalid customer %q", args[0])
			}
			if err := resetSession(ctx, conversation.NewRedisStateStore(client, cfg.SessionTTL),
				conversation.NewRedisHistoryStore(client, cfg.SessionTTL), customerID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session for %s cleared\n", customerID)
			return nil
		},
	}
}

func resetSession(ctx context.Context, states conversation.StateStore, history conversation.HistoryStore, customerID string) error {
	if err := states.Reset(ctx, customerID); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if err := history.Clear(ctx, customerID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
