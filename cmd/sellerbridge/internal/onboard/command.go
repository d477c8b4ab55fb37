package onboard

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal"
	"github.com/sellerbridge/sellerbridge/pkg/config"
)

func NewOnboardCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "onboard",
		Aliases: []string{"o"},
		Short:   "Write a default config file",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := config.ExpandHome(internal.ConfigPath)
			created, err := onboard(path, force)
			if err != nil {
				return err
			}
			if !created {
				fmt.Println(internal.Field("Config already exists", path))
				fmt.Println("Use --force to overwrite it.")
				return nil
			}
			fmt.Printf("%s %s\n", internal.Logo, internal.TitleStyle.Render("sellerbridge is ready"))
			fmt.Println(internal.Field("Config", path))
			fmt.Println("\nNext steps:")
			fmt.Println("  1. Set channels.telegram.token and admin_id in the config")
			fmt.Println("  2. Run: sellerbridge run")
			fmt.Println("  3. Send /login to your bot")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}

// onboard writes the default config to path unless one exists and force is off.
func onboard(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}

	cfg := config.DefaultConfig()
	cfg.Channels.Telegram.Enabled = true
	if err := config.SaveConfig(path, cfg); err != nil {
		return false, fmt.Errorf("save config: %w", err)
	}
	return true, nil
}
