package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal"
)

func NewConfigCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			data, err := yaml.Marshal(cfg.Masked())
			if err != nil {
				return err
			}
			fmt.Println(internal.TitleStyle.Render(internal.ConfigPath))
			fmt.Println(internal.BoxStyle.Render(strings.TrimRight(string(data), "\n")))

			if !check {
				return nil
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config:\n%w", err)
			}
			fmt.Println(internal.ValueStyle.Render("✓ config is valid"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Validate the configuration")

	return cmd
}
