// Sellerbridge relays Shopee seller-center chat messages to an operator on
// Telegram (or Discord) and types the operator's replies back.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal"
	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal/history"
	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal/onboard"
	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal/run"
	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal/version"
)

func NewSellerbridgeCommand() *cobra.Command {
	short := fmt.Sprintf("%s sellerbridge - Shopee chat to Telegram bridge v%s\n\n", internal.Logo, internal.FormatVersion())

	cmd := &cobra.Command{
		Use:           "sellerbridge",
		Short:         short,
		Example:       "sellerbridge run",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&internal.ConfigPath, "config", "c", internal.DefaultConfigPath(), "Path to config file")

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		run.NewRunCommand(),
		config.NewConfigCommand(),
		history.NewHistoryCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewSellerbridgeCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, internal.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
