package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("%s sellerbridge %s\n", internal.Logo, internal.FormatVersion())
			build, goVer := internal.FormatBuildInfo()
			if build != "" {
				fmt.Println(internal.Field("  Build", build))
			}
			fmt.Println(internal.Field("  Go", goVer))
		},
	}
}
