package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/ragtrial/internal/control"
	"github.com/vietddude/ragtrial/internal/core/config"
	"github.com/vietddude/ragtrial/internal/credential"
	"github.com/vietddude/ragtrial/internal/dataset"
	"github.com/vietddude/ragtrial/internal/resilience"
)

const defaultSettingsPath = config.DefaultPath

var (
	settingsPath string
	isDebug      bool
	opts         runOptions
)

// runOptions mirrors the flags that override the settings file.
type runOptions struct {
	config      string
	qaPath      string
	corpusPath  string
	projectDir  string
	device      string
	maxAttempts int
	baseDelay   time.Duration
}

var rootCmd = &cobra.Command{
	Use:   "ragtrial",
	Short: "Run a RAG evaluation trial with credential rotation",
	Long: `ragtrial validates a QA/corpus dataset and runs one evaluation trial on an
external RAG evaluation engine. When the engine reports a rate limit the trial
is retried with the next API key after an exponential backoff.`,
	Run: runTrial,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", defaultSettingsPath, "driver settings file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")

	flags := rootCmd.Flags()
	flags.StringVar(&opts.config, "config", "", "evaluation config file (required)")
	flags.StringVar(&opts.qaPath, "qa-data-path", config.DefaultQAPath, "QA dataset")
	flags.StringVar(&opts.corpusPath, "corpus-data-path", config.DefaultCorpusPath, "corpus dataset")
	flags.StringVar(&opts.projectDir, "project-dir", config.DefaultProjectDir, "evaluation working directory")
	flags.StringVar(&opts.device, "device", "auto", "compute device: auto, cpu, mps, cuda")
	flags.IntVar(&opts.maxAttempts, "max-attempts", config.DefaultMaxAttempts, "attempts before giving up on rate limits")
	flags.DurationVar(&opts.baseDelay, "base-delay", config.DefaultBaseDelay, "first backoff delay, doubled per attempt")
}

// apply copies every flag the user set onto cfg.
func (o runOptions) apply(cfg *config.AppConfig, changed func(name string) bool) {
	if changed("config") {
		cfg.Data.Config = o.config
	}
	if changed("qa-data-path") {
		cfg.Data.QA = o.qaPath
	}
	if changed("corpus-data-path") {
		cfg.Data.Corpus = o.corpusPath
	}
	if changed("project-dir") {
		cfg.Data.ProjectDir = o.projectDir
	}
	if changed("device") {
		cfg.Device = o.device
	}
	if changed("max-attempts") {
		cfg.Retry.MaxAttempts = o.maxAttempts
	}
	if changed("base-delay") {
		cfg.Retry.BaseDelay = o.baseDelay
	}
}

// loadSettings reads the settings file. A missing default file means
// built-in defaults; a missing explicit file is an error.
func loadSettings(path string) (*config.AppConfig, error) {
	return config.LoadSettings(path)
}

func setupLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// prepare loads .env and settings and installs the logger.
func prepare() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := loadSettings(settingsPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, err
	}
	setupLogging(cfg)
	return cfg, nil
}

func appConfig(cfg *config.AppConfig) control.Config {
	return control.Config{
		Port: cfg.Server.Port,
		Credentials: credential.Source{
			EnvNames: cfg.Credentials.Env,
			Keys:     cfg.Credentials.Keys,
			MinCount: cfg.Credentials.MinCount,
		},
		Retry: resilience.Config{
			MaxAttempts:   cfg.Retry.MaxAttempts,
			BaseDelay:     cfg.Retry.BaseDelay,
			MaxDelay:      cfg.Retry.MaxDelay,
			Jitter:        cfg.Retry.Jitter,
			SwallowErrors: cfg.Retry.SwallowErrors,
		},
		Evaluator: cfg.Evaluator,
		Paths: dataset.Paths{
			Config:     cfg.Data.Config,
			QA:         cfg.Data.QA,
			Corpus:     cfg.Data.Corpus,
			ProjectDir: cfg.Data.ProjectDir,
		},
		Device: cfg.Device,
		Ledger: control.LedgerConfig{
			Backend:   cfg.Storage.Backend,
			Retention: cfg.Storage.Retention,
			Redis:     cfg.Redis,
			Database:  cfg.Database,
		},
	}
}

func runTrial(cmd *cobra.Command, args []string) {
	if err := executeTrial(cmd); err != nil {
		os.Exit(1)
	}
}

func executeTrial(cmd *cobra.Command) error {
	cfg, err := prepare()
	if err != nil {
		slog.Error("Failed to load settings", "path", settingsPath, "error", err)
		return err
	}
	opts.apply(cfg, cmd.Flags().Changed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewApp(ctx, appConfig(cfg))
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(shutdownCtx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}()

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start", "error", err)
		return err
	}

	record, err := app.Run(ctx)
	if err != nil {
		slog.Error("Evaluation trial failed", "error", err)
		return err
	}

	if record.Outcome.IsFailure() {
		// Only reachable with retry.swallow_errors
		slog.Warn("Evaluation trial did not succeed", "trial", record.ID, "outcome", record.Outcome, "error", record.Error)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "trial %s succeeded after %d attempt(s)\n", record.ID, record.Attempts)
	return nil
}
