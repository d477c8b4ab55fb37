package history

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sellerbridge/sellerbridge/cmd/sellerbridge/internal"
	"github.com/sellerbridge/sellerbridge/pkg/audit"
	"github.com/sellerbridge/sellerbridge/pkg/config"
	"github.com/sellerbridge/sellerbridge/pkg/correlation"
)

const timeFormat = "02/01/2006 15:04"

func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently relayed replies from the audit journal",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := internal.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.History.SQLitePath == "" {
				return fmt.Errorf("history.sqlite_path is not set; the journal is disabled")
			}

			journal, err := audit.Open(config.ExpandHome(cfg.History.SQLitePath))
			if err != nil {
				return err
			}
			defer journal.Close()

			records, err := journal.Recent(limit)
			if err != nil {
				return err
			}
			total, err := journal.Count()
			if err != nil {
				return err
			}
			printRecords(os.Stdout, records, total)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")

	return cmd
}

func printRecords(w io.Writer, records []correlation.HistoryRecord, total int) {
	fmt.Fprintln(w, internal.TitleStyle.Render(fmt.Sprintf("Relayed replies (%d of %d)", len(records), total)))
	if len(records) == 0 {
		fmt.Fprintln(w, internal.LabelStyle.Render("  none yet"))
		return
	}
	for _, rec := range records {
		var b strings.Builder
		fmt.Fprintln(&b, internal.Field("Token", rec.Token))
		fmt.Fprintln(&b, internal.Field("Customer", rec.Customer))
		fmt.Fprintln(&b, internal.Field("Message", rec.Original))
		fmt.Fprintln(&b, internal.Field("Reply", rec.Reply))
		fmt.Fprint(&b, internal.Field("Time", rec.RepliedAt.Local().Format(timeFormat)))
		fmt.Fprintln(w, internal.BoxStyle.Render(b.String()))
	}
}
