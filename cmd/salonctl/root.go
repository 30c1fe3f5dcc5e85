package main

import (
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/salon-whatsapp-assistant/internal/config"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "salonctl",
		Short: "Operate the salon WhatsApp booking assistant",
		Long: `salonctl talks to the same stores and POS the assistant uses. It can
chat with the assistant from the terminal, pull the POS catalog on demand
and clear a customer's conversation session.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL")

	root.AddCommand(
		newChatCmd(opts),
		newSyncCatalogCmd(opts),
		newResetCmd(opts),
	)
	return root
}

// load reads config and builds a logger that writes to stderr so REPL output
// stays readable.
func (o *rootOptions) load() (*appconfig.Config, *logging.Logger) {
	cfg := appconfig.Load()
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return cfg, logging.NewWithWriter(os.Stderr, level)
}
