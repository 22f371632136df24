package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/ragtrial/internal/credential"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Check the configured API keys without running a trial",
	Run:   runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) {
	cfg, err := prepare()
	if err != nil {
		slog.Error("Failed to load settings", "error", err)
		os.Exit(1)
	}

	pool, err := credential.Load(appConfig(cfg).Credentials, nil)
	if err != nil {
		slog.Error("Credential pool is not usable", "error", err)
		os.Exit(1)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%d credential(s), rotation starts at #1\n", pool.Size())
	for i, label := range pool.Labels() {
		_, _ = fmt.Fprintf(out, "  #%d %s\n", i+1, label)
	}
}
