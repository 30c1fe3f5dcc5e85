package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/salon-whatsapp-assistant/internal/app/bootstrap"
	"github.com/wolfman30/salon-whatsapp-assistant/internal/conversation"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var (
		customerID string
		name       string
		useStores  bool
		noSync     bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant from the terminal",
		Long: `Starts a REPL against the full assistant. By default conversation state
lives in memory; --stores uses the configured Redis and Postgres instead.
Type /reset to start over and /quit to leave.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger := root.load()
			if !useStores {
				cfg.StateBackend = "memory"
				cfg.RedisAddr = ""
				cfg.DatabaseURL = ""
				cfg.NATSURL = ""
			}

			infra, err := bootstrap.BuildInfra(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer infra.Close()

			llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeLLM()

			runtime, err := bootstrap.BuildConversationRuntime(ctx, cfg,
				bootstrap.Dependencies{Redis: infra.Redis, Pool: infra.Pool, SQLDB: infra.SQLDB, LLM: llm}, logger)
			if err != nil {
				return err
			}
			defer runtime.Close()

			if !noSync {
				fmt.Fprintln(cmd.ErrOrStderr(), "syncing catalog from POS...")
				if res, err := runtime.Syncer.Run(ctx); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "catalog sync failed, continuing with fallbacks: %v\n", err)
				} else {
					fmt.Fprintf(cmd.ErrOrStderr(), "catalog ready: %d services across %d branches\n", res.Services, res.Branches)
				}
			}

			session := chatSession{
				service:  runtime.Assistant,
				sessions: runtime.Assistant,
				customer: customerID,
				name:     name,
				now:      time.Now,
			}
			return session.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&customerID, "customer", "96550000000", "customer phone used as the session key")
	cmd.Flags().StringVar(&name, "name", "", "customer display name")
	cmd.Flags().BoolVar(&useStores, "stores", false, "use configured Redis/Postgres instead of memory")
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "skip the startup catalog sync")
	return cmd
}

type chatSession struct {
	service  conversation.Service
	sessions conversation.SessionAdmin
	customer string
	name     string
	now      func() time.Time
}

func (s chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "you> ")
	for turn := 1; scanner.Scan(); turn++ {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/reset":
			if err := s.sessions.Reset(ctx, s.customer); err != nil {
				return err
			}
			fmt.Fprintln(out, "(session cleared)")
		default:
			res, err := s.service.HandleMessage(ctx, conversation.Inbound{
				CustomerID: s.customer,
				Phone:      s.customer,
				Name:       s.name,
				Text:       line,
				MessageID:  fmt.Sprintf("cli-%d", turn),
				Channel:    "cli",
				ReceivedAt: s.now(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "bot> %s\n", res.Reply)
			if res.OrderID != "" {
				fmt.Fprintf(out, "(order %s, phase %s)\n", res.OrderID, res.Phase)
			}
		}
		fmt.Fprint(out, "you> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
