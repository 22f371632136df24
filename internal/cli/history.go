package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/ragtrial/internal/control"
	"github.com/vietddude/ragtrial/internal/core/domain"
	"github.com/vietddude/ragtrial/internal/infra/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded evaluation trials",
	Run:   runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of trials to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg, err := prepare()
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}
	if cfg.Storage.Backend == storage.BackendMemory {
		slog.Warn("The memory ledger does not outlive a run; configure storage.backend to keep history")
	}

	ctx := context.Background()
	ledger, err := control.OpenLedger(ctx, appConfig(cfg).Ledger)
	if err != nil {
		slog.Error("Failed to open trial ledger", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = ledger.Close()
	}()

	trials, err := ledger.List(ctx, historyLimit)
	if err != nil {
		slog.Error("Failed to list trials", "error", err)
		os.Exit(1)
	}

	printTrials(cmd.OutOrStdout(), trials)
}

func printTrials(out io.Writer, trials []*domain.TrialRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tOUTCOME\tATTEMPTS\tDURATION\tCREDENTIALS")

	for _, t := range trials {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			t.ID,
			t.StartedAt.Local().Format(time.DateTime),
			t.Outcome,
			t.Attempts,
			t.Duration().Round(time.Second),
			strings.Join(t.Credentials, ","),
		)
	}
	_ = w.Flush()
}
